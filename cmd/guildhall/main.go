// Command guildhall runs the guildhall API server and its schema migrations.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bissquit/guildhall/internal/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "guildhall",
		Short:         "Guildhall - roster, actions and goals API",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "config.yaml", "path to the YAML config file")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())

	return cmd
}
