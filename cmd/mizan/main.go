package main

import (
	"os"

	"github.com/spf13/cobra"

	"mizan/internal/interfaces/cli/migrate"
	"mizan/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mizan",
		Short: "Mizan - subscription entitlement service",
		Long:  `Mizan resolves user subscription entitlements by reconciling the billing provider, the tier catalog and the durable tier cache, and serves feature gate decisions over HTTP.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
