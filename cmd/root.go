package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/TheDonCipher/flashliq/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "flashliq",
	Short: "An atomic flash-loan liquidation executor",
	Long: `An execution engine that borrows an asset via a flash loan, liquidates an
undercollateralized position, swaps the seized collateral back, repays the
loan and forwards the residual profit to the treasury - all within a single
all-or-nothing ledger transaction.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (JSON)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
