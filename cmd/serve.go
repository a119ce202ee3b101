package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcclink/mcclink/internal/ads"
	"github.com/mcclink/mcclink/internal/config"
	"github.com/mcclink/mcclink/internal/mailer"
	"github.com/mcclink/mcclink/internal/oauth"
	"github.com/mcclink/mcclink/internal/server"
	"github.com/mcclink/mcclink/internal/store"
)

type serveRunner interface {
	Start() error
	Stop(ctx context.Context) error
}

var (
	serveHost string
	servePort int
)

var (
	newServeServer = func(cfg *config.Config, deps server.Deps) serveRunner {
		return server.New(cfg, deps)
	}
	buildServeDeps      = defaultServeDeps
	signalNotifyContext = signal.NotifyContext
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default: from MCCLINK_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default: from MCCLINK_PORT)")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	log.Logger = config.InitLogger(cfg.LogLevel)
	log.Info().
		Str("log_level", cfg.LogLevel).
		Msg("logger initialized")

	deps, cleanup, err := buildServeDeps(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := newServeServer(cfg, deps)

	startErrCh := make(chan error, 1)
	go func() {
		startErrCh <- srv.Start()
	}()

	ctx, stop := signalNotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-startErrCh:
		if err != nil {
			log.Error().Err(err).Msg("serve exited with error")
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("serve shutdown failed")
			return err
		}

		select {
		case err := <-startErrCh:
			if err != nil {
				log.Error().Err(err).Msg("serve exited after shutdown with error")
			}
			return err
		case <-time.After(10 * time.Second):
			log.Error().Msg("serve shutdown timed out")
			return fmt.Errorf("shutdown timeout")
		}
	}
}

func defaultServeDeps(ctx context.Context, cfg *config.Config) (server.Deps, func(), error) {
	client, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return server.Deps{}, nil, fmt.Errorf("connect mongodb: %w", err)
	}

	cleanup := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Warn().Err(err).Msg("mongodb disconnect failed")
		}
	}

	accounts := store.New(client.Database(cfg.MongoDatabase))
	links := oauth.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURL())
	refresher := oauth.NewRefresher(accounts, links)
	inviter := ads.NewInviter(refresher, ads.Config{DeveloperToken: cfg.DeveloperToken})

	deps := server.Deps{
		Store:   accounts,
		Links:   links,
		Inviter: inviter,
		Mailer: mailer.New(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			Password: cfg.SMTPPassword,
		}),
	}
	return deps, cleanup, nil
}
