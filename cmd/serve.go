package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spigell/talent-ranker/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking API over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "listen address (overrides server.address)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := setup(ctx)
	defer rt.Close()

	cfg := rt.config.Server
	if address, _ := cmd.Flags().GetString("address"); address != "" {
		cfg.Address = address
	}

	return api.New(cfg, rt.engine, rt.logger).Run(ctx)
}
