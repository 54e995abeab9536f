package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/justchokingaround/vodhub/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the aggregation pipeline as a JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}

		srv := server.New(app.serverDeps(cfg.Server.Passphrase))

		// Setup hot reload
		vcfg.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("Config file changed", "name", e.Name)
			if err := vcfg.Unmarshal(cfg); err != nil {
				logger.Error("Failed to reload config", "error", err)
				return
			}
			srv.SetPassphrase(cfg.Server.Passphrase)
			logger.Info("Access passphrase reloaded", "enabled", cfg.Server.Passphrase != "")
		})
		if vcfg.ConfigFileUsed() != "" {
			vcfg.WatchConfig()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Run backend health checks in the background
		go func() {
			logger.Info("Running backend health checks...")
			checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			for _, st := range app.sources.CheckAll(checkCtx, app.cms, 8*time.Second) {
				if st.Healthy {
					logger.Info("backend online", "name", st.Backend.Name, "duration", st.Duration)
				} else {
					logger.Warn("backend offline", "name", st.Backend.Name, "error", st.Error)
				}
			}
			logger.Info("Backend health checks complete.")
		}()

		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: server.addr from config)")
}
