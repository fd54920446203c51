package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Serve exposes workflow submission, status polling, cancellation, and
provider health over HTTP. The server shuts down gracefully on SIGINT or
SIGTERM.`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, cleanup, err := buildRuntime()
	if err != nil {
		return err
	}
	defer cleanup()

	addr := serveAddr
	if addr == "" {
		addr = rt.cfg.Server.Addr
	}

	server := api.NewServer(rt.engine,
		api.WithLogger(rt.logger),
		api.WithCORSOrigins(rt.cfg.Server.CORSOrigins),
		api.WithHealthReporter(rt.health),
		api.WithAgentRegistry(rt.agents),
		api.WithEvidenceArchive(rt.store),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, addr); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
