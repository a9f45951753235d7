package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TheDonCipher/flashliq/config"
	"github.com/TheDonCipher/flashliq/dex/sushiswap"
	"github.com/TheDonCipher/flashliq/dex/uniswap"
	"github.com/TheDonCipher/flashliq/engine"
	"github.com/TheDonCipher/flashliq/flashloan/aave"
	"github.com/TheDonCipher/flashliq/flashloan/balancer"
	"github.com/TheDonCipher/flashliq/ledger"
	"github.com/TheDonCipher/flashliq/lending"
	"github.com/TheDonCipher/flashliq/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stand up the configured world and execute its liquidation calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// world is the fully wired simulation: the ledger plus the engine bound to
// its loan sources, venues and markets.
type world struct {
	ledger *ledger.Ledger
	engine *engine.Engine
}

func run(ctx context.Context) error {
	log := utils.GetLogger()

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Logger = log

	w, err := buildWorld(cfg)
	if err != nil {
		return fmt.Errorf("failed to build world: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)

	for i, call := range cfg.Calls {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		params, err := buildParams(call)
		if err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}

		var execErr error
		if call.UseVaultLoan {
			execErr = w.engine.ExecuteWithVaultLoan(ctx, cfg.Engine.Owner, params)
		} else {
			execErr = w.engine.Execute(ctx, cfg.Engine.Owner, params)
		}
		if execErr != nil {
			log.Warn("liquidation attempt failed",
				zap.Int("call", i),
				zap.String("borrower", call.Borrower.Hex()),
				zap.Error(execErr))
		}
	}

	log.Info("run complete",
		zap.Int("calls", len(cfg.Calls)),
		zap.Int("executed", w.engine.History().Len()),
		zap.Uint64("gas_used", w.ledger.GasUsed()))
	return nil
}

func buildWorld(cfg *config.Config) (*world, error) {
	log := cfg.Logger
	l := ledger.New()

	for _, b := range cfg.World.Balances {
		amount, err := config.ParseAmount(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("balance for %s: %w", b.Holder.Hex(), err)
		}
		if err := l.Mint(b.Token, b.Holder, amount); err != nil {
			return nil, err
		}
	}

	pool, err := aave.NewPool(l, cfg.Engine.PoolLoanSource, cfg.Engine.PoolPremiumBps, log)
	if err != nil {
		return nil, err
	}
	vault, err := balancer.NewVault(l, cfg.Engine.VaultLoanSource, cfg.Engine.VaultFeeBps, log)
	if err != nil {
		return nil, err
	}
	primary, err := uniswap.NewVenue(l, cfg.Engine.PrimarySwapVenue, cfg.Engine.PrimaryFeeTier, log)
	if err != nil {
		return nil, err
	}
	fallback, err := sushiswap.NewVenue(l, cfg.Engine.FallbackSwapVenue, log)
	if err != nil {
		return nil, err
	}

	registry := lending.NewRegistry()
	for _, mc := range cfg.World.Markets {
		priceNum, err := config.ParseAmount(mc.PriceNum)
		if err != nil {
			return nil, fmt.Errorf("market %s price: %w", mc.Address.Hex(), err)
		}
		priceDen, err := config.ParseAmount(mc.PriceDen)
		if err != nil {
			return nil, fmt.Errorf("market %s price: %w", mc.Address.Hex(), err)
		}
		market, err := lending.NewMarket(l, lending.MarketConfig{
			Address:  mc.Address,
			BonusBps: mc.BonusBps,
			PriceNum: priceNum,
			PriceDen: priceDen,
		}, log)
		if err != nil {
			return nil, err
		}
		for _, pc := range mc.Positions {
			collateral, err := config.ParseAmount(pc.Collateral)
			if err != nil {
				return nil, fmt.Errorf("position for %s: %w", pc.Borrower.Hex(), err)
			}
			debt, err := config.ParseAmount(pc.Debt)
			if err != nil {
				return nil, fmt.Errorf("position for %s: %w", pc.Borrower.Hex(), err)
			}
			if err := market.OpenPosition(lending.Position{
				Borrower:        pc.Borrower,
				CollateralAsset: pc.CollateralAsset,
				DebtAsset:       pc.DebtAsset,
				Collateral:      collateral,
				Debt:            debt,
			}); err != nil {
				return nil, err
			}
		}
		if err := registry.Register(market); err != nil {
			return nil, err
		}
	}

	eng, err := engine.New(engine.Config{
		Ledger:        l,
		Logger:        log,
		Self:          cfg.Engine.Address,
		Owner:         cfg.Engine.Owner,
		Treasury:      cfg.Engine.Treasury,
		PoolSource:    pool,
		VaultSource:   vault,
		PrimaryVenue:  primary,
		FallbackVenue: fallback,
		Protocols:     registry,
		HistorySize:   cfg.Engine.HistorySize,
	})
	if err != nil {
		return nil, err
	}

	return &world{ledger: l, engine: eng}, nil
}

func buildParams(call config.CallConfig) (engine.Params, error) {
	debtAmount, err := config.ParseAmount(call.DebtAmount)
	if err != nil {
		return engine.Params{}, fmt.Errorf("debt amount: %w", err)
	}
	minProfit, err := config.ParseAmount(call.MinProfit)
	if err != nil {
		return engine.Params{}, fmt.Errorf("min profit: %w", err)
	}
	convention, err := call.ConventionTag()
	if err != nil {
		return engine.Params{}, err
	}
	return engine.Params{
		LendingProtocol: call.LendingProtocol,
		Borrower:        call.Borrower,
		CollateralAsset: call.CollateralAsset,
		DebtAsset:       call.DebtAsset,
		DebtAmount:      debtAmount,
		MinProfit:       minProfit,
		Convention:      convention,
	}, nil
}
