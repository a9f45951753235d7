package utils

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TheDonCipher/flashliq/config"
)

const (
	defaultLogFile      = "flashliq.log"
	defaultErrorLogFile = "flashliq-error.log"
)

var (
	log  *zap.Logger
	once sync.Once
)

// InitLogger initializes the global logger instance. Debug runs use a console
// encoder at debug level; both modes tee into log files whose paths come from
// FLASHLIQ_LOG_FILE / FLASHLIQ_ERROR_LOG_FILE.
func InitLogger(debug bool) *zap.Logger {
	once.Do(func() {
		var cfg zap.Config
		if debug {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		} else {
			cfg = zap.NewProductionConfig()
		}

		cfg.OutputPaths = []string{"stdout", config.GetEnvWithDefault(config.EnvLogFile, defaultLogFile)}
		cfg.ErrorOutputPaths = []string{"stderr", config.GetEnvWithDefault(config.EnvErrorLogFile, defaultErrorLogFile)}

		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.StacktraceKey = "stacktrace"

		logger, err := cfg.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		if err != nil {
			panic(err)
		}

		log = logger
	})

	return log
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if log == nil {
		return InitLogger(false)
	}
	return log
}

// CleanupLogger flushes any buffered log entries
func CleanupLogger() {
	if log != nil {
		_ = log.Sync()
	}
}
