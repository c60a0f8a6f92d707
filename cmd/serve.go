package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantd/grantd/internal/api"
	"github.com/grantd/grantd/internal/logging"
	"github.com/grantd/grantd/internal/metrics"
	"github.com/grantd/grantd/internal/tasks"
)

// purgeTaskName is the background task that sweeps expired grants.
const purgeTaskName = "purge-expired-grants"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the grantd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		addr := cfg.Server.Addr
		if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
			addr = flagAddr
		}

		log.Info().Msg("Initializing components...")
		components, err := BuildComponents(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer components.Close()

		log.Info().
			Str("issuer", cfg.Issuer).
			Str("algorithm", components.Signer.Algorithm()).
			Str("key_id", components.Signer.KeyID()).
			Int("clients", components.Registry.Len()).
			Msg("components ready")

		m := metrics.New()
		m.RegisterActiveGrants(components.Store)

		taskManager := tasks.NewManager()
		taskManager.Register(purgeTaskName, cfg.Codes.SweepInterval,
			func(ctx context.Context, logger logging.InternalLogger) error {
				deleted, err := components.Store.DeleteExpired(ctx)
				if err != nil {
					return err
				}
				logger.Info("purged %d expired grant(s)", deleted)
				return nil
			})
		defer taskManager.Stop()

		srv := api.NewServer(
			components.Grants,
			components.Authenticator,
			components.Signer,
			components.Store,
			components.Auditor,
			taskManager,
			m,
		)

		var adminKey []byte
		if cfg.Admin.Enabled {
			adminKey = []byte(cfg.Admin.Secret)
		} else {
			log.Info().Msg("admin surface disabled")
		}

		server := &http.Server{
			Addr:    addr,
			Handler: srv.Routes(adminKey),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f.bindConfigFlag(serveCmd.Flags())
	serveCmd.Flags().String("addr", "", "address to listen on (overrides the config file)")
}
