package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/efreitasn/custodex/internal/config"
)

var healthcheckURL string

func init() {
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "",
		"health endpoint to probe (defaults to localhost on $CUSTODEX_PORT)")
}

// healthcheckCmd probes a running server and exits non-zero when it is
// unhealthy, for container health checks.
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that a running server answers /healthz",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := healthcheckURL
		if url == "" {
			port := os.Getenv(config.EnvPrefix + "_PORT")
			if port == "" {
				port = "8080"
			}
			url = fmt.Sprintf("http://localhost:%s/healthz", port)
		}

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			return fmt.Errorf("probing %s: %w", url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("probing %s: status %d", url, resp.StatusCode)
		}
		return nil
	},
}
