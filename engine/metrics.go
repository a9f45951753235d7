package engine

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// engineMetrics tracks execution outcomes. Collectors are standalone and may
// be registered by the embedding application.
type engineMetrics struct {
	executions   *prometheus.CounterVec
	profitTotal  prometheus.Counter
	latency      prometheus.Histogram
	inFlight     prometheus.Gauge
	successRate  prometheus.Gauge
	successCount prometheus.Counter
	totalCount   prometheus.Counter
}

func newEngineMetrics() *engineMetrics {
	return &engineMetrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liquidation_executions_total",
			Help: "Number of liquidation executions by loan source and outcome",
		}, []string{"source", "outcome"}),
		profitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liquidation_profit_total",
			Help: "Total profit forwarded to the treasury, in debt-asset base units",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "liquidation_execution_latency_seconds",
			Help:    "Latency of liquidation executions",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liquidation_executions_in_flight",
			Help: "Number of executions currently in flight",
		}),
		successRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liquidation_success_rate",
			Help: "Success rate of liquidation executions",
		}),
		successCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liquidation_success_count",
			Help: "Number of successful liquidation executions",
		}),
		totalCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liquidation_total_count",
			Help: "Total number of liquidation executions",
		}),
	}
}

// Collectors returns every collector for registration with a prometheus
// registry.
func (m *engineMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.executions, m.profitTotal, m.latency, m.inFlight,
		m.successRate, m.successCount, m.totalCount,
	}
}

func (m *engineMetrics) observe(source string, start time.Time, profit *big.Int, err error) {
	m.latency.Observe(time.Since(start).Seconds())
	m.totalCount.Inc()
	if err != nil {
		m.executions.WithLabelValues(source, "failure").Inc()
	} else {
		m.executions.WithLabelValues(source, "success").Inc()
		m.successCount.Inc()
		if profit != nil {
			if f, _ := new(big.Float).SetInt(profit).Float64(); f > 0 {
				m.profitTotal.Add(f)
			}
		}
	}
	m.updateSuccessRate()
}

func (m *engineMetrics) updateSuccessRate() {
	success := counterValue(m.successCount)
	total := counterValue(m.totalCount)
	if total > 0 {
		m.successRate.Set(success / total)
	}
}

// counterValue reads a counter back through its wire representation.
func counterValue(c prometheus.Counter) float64 {
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	metric := <-ch
	out := &dto.Metric{}
	if err := metric.Write(out); err != nil || out.Counter == nil {
		return 0
	}
	return out.Counter.GetValue()
}
