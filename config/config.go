package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TheDonCipher/flashliq/types"
)

type Config struct {
	Engine    EngineConfig    `json:"engine"`
	World     WorldConfig     `json:"world"`
	Calls     []CallConfig    `json:"calls"`
	RateLimit RateLimitConfig `json:"rate_limit"`

	// Internal components
	Logger *zap.Logger `json:"-"`
}

// EngineConfig holds the engine wiring: its own address, the privileged
// accounts, and the four immutable collaborator addresses.
type EngineConfig struct {
	Address           common.Address `json:"address"`
	Owner             common.Address `json:"owner"`
	Treasury          common.Address `json:"treasury"`
	PoolLoanSource    common.Address `json:"pool_loan_source"`
	VaultLoanSource   common.Address `json:"vault_loan_source"`
	PrimarySwapVenue  common.Address `json:"primary_swap_venue"`
	FallbackSwapVenue common.Address `json:"fallback_swap_venue"`
	PoolPremiumBps    int64          `json:"pool_premium_bps"`
	VaultFeeBps       int64          `json:"vault_fee_bps"`
	PrimaryFeeTier    int64          `json:"primary_fee_tier"`
	HistorySize       int            `json:"history_size"`
}

// WorldConfig describes the simulated world the run command stands up:
// initial token balances and lending markets with open positions.
type WorldConfig struct {
	Balances []BalanceConfig `json:"balances"`
	Markets  []MarketConfig  `json:"markets"`
}

type BalanceConfig struct {
	Token  common.Address `json:"token"`
	Holder common.Address `json:"holder"`
	Amount string         `json:"amount"`
}

type MarketConfig struct {
	Address   common.Address   `json:"address"`
	BonusBps  int64            `json:"bonus_bps"`
	PriceNum  string           `json:"price_num"`
	PriceDen  string           `json:"price_den"`
	Positions []PositionConfig `json:"positions"`
}

type PositionConfig struct {
	Borrower        common.Address `json:"borrower"`
	CollateralAsset common.Address `json:"collateral_asset"`
	DebtAsset       common.Address `json:"debt_asset"`
	Collateral      string         `json:"collateral"`
	Debt            string         `json:"debt"`
}

// CallConfig is one liquidation the run command should attempt.
type CallConfig struct {
	LendingProtocol common.Address `json:"lending_protocol"`
	Borrower        common.Address `json:"borrower"`
	CollateralAsset common.Address `json:"collateral_asset"`
	DebtAsset       common.Address `json:"debt_asset"`
	DebtAmount      string         `json:"debt_amount"`
	MinProfit       string         `json:"min_profit"`
	UseVaultLoan    bool           `json:"use_vault_loan"`
	Convention      string         `json:"convention"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// DefaultConfig returns the baseline configuration. Addresses default to
// zero and must come from the config file or environment.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			PoolPremiumBps: 9,
			VaultFeeBps:    0,
			PrimaryFeeTier: 3000,
			HistorySize:    1024,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             1,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional JSON file
// and environment overrides, then validates it.
func LoadConfig(path string) (*Config, error) {
	LoadEnv()

	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvOwnerAddress); v != "" {
		cfg.Engine.Owner = common.HexToAddress(v)
	}
	if v := os.Getenv(EnvTreasuryAddress); v != "" {
		cfg.Engine.Treasury = common.HexToAddress(v)
	}
}

// Validate checks the parts of the configuration every command needs. World
// and call entries are validated when they are built.
func (c *Config) Validate() error {
	e := c.Engine
	for _, check := range []struct {
		name string
		addr common.Address
	}{
		{"engine.address", e.Address},
		{"engine.owner", e.Owner},
		{"engine.treasury", e.Treasury},
		{"engine.pool_loan_source", e.PoolLoanSource},
		{"engine.vault_loan_source", e.VaultLoanSource},
		{"engine.primary_swap_venue", e.PrimarySwapVenue},
		{"engine.fallback_swap_venue", e.FallbackSwapVenue},
	} {
		if check.addr == (common.Address{}) {
			return fmt.Errorf("config: %s must be a non-zero address", check.name)
		}
	}
	if e.PoolPremiumBps < 0 || e.VaultFeeBps < 0 {
		return fmt.Errorf("config: loan fees cannot be negative")
	}
	if e.PrimaryFeeTier <= 0 {
		return fmt.Errorf("config: primary fee tier must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("config: rate limit must be positive")
	}
	return nil
}

// ParseAmount parses a base-10 token amount.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	return amount, nil
}

// ConventionTag maps the config string onto the lending convention.
func (c CallConfig) ConventionTag() (types.LendingConvention, error) {
	switch c.Convention {
	case "", "debt_covering":
		return types.ConventionDebtCovering, nil
	case "repay_borrow":
		return types.ConventionRepayBorrow, nil
	default:
		return 0, fmt.Errorf("unknown liquidation convention %q", c.Convention)
	}
}
