package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/efreitasn/custodex/internal/config"
)

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv(config.EnvPrefix+"_CONFIG"),
		"path to a config file (defaults to $CUSTODEX_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthcheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "custodex",
	Short: "A custodial order-book exchange over ERC20-style asset ledgers",
	Long: `custodex runs an exchange that holds users' tokens in custody and lets
them post, cancel and fill orders against each other, charging the filler a
fixed percentage fee.

Configuration comes from defaults, an optional config file and CUSTODEX_
environment variables, in increasing precedence.`,
	SilenceUsage: true,
}
