package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emanueleielo/parrotgate/internal/config"
	"github.com/emanueleielo/parrotgate/internal/gateway"
)

// gatewayCmd runs just the allowlisted host-command gateway, without
// the agent, router, or channels — for deployments that split the
// gateway onto its own host.
func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run only the host-command gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				slog.Error("failed to load config", "path", cfgPath, "error", err)
				os.Exit(1)
			}
			if !cfg.Gateway.Enabled {
				slog.Error("gateway.enabled is false in config; nothing to run")
				os.Exit(1)
			}

			bridges := make(map[string]gateway.Bridge, len(cfg.Gateway.Bridges))
			for name, b := range cfg.Gateway.Bridges {
				bridges[name] = gateway.NewBridge(b.AllowedCommands, b.AllowedCwd)
			}
			srv, err := gateway.NewServer(gateway.ServerConfig{
				Token:          cfg.Gateway.Token,
				DefaultTimeout: time.Duration(cfg.Gateway.DefaultTimeout) * time.Second,
				Bridges:        bridges,
			})
			if err != nil {
				slog.Error("failed to build gateway server", "error", err)
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("gateway listening", "port", cfg.Gateway.Port)
			return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Gateway.Port))
		},
	}
}
