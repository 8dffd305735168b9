package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/reimii/meetup-server/internal/auth"
	"github.com/reimii/meetup-server/internal/config"
	"github.com/reimii/meetup-server/internal/relay"
	"github.com/reimii/meetup-server/internal/store"
	"github.com/reimii/meetup-server/internal/store/sqlite"
	transporthttp "github.com/reimii/meetup-server/internal/transport/http"
)

// App wires together storage, the signaling relay and the transport layer.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	bridge          *relay.Bridge
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	}
	authService := auth.NewService(st, jwtConfig)

	registry := relay.NewRegistry()
	bridge := relay.NewBridge(cfg.SFU, registry, logger)
	server := transporthttp.NewServer(cfg, authService, st, registry, bridge, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		bridge:          bridge,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the SFU bridge and the HTTP server, blocking until context
// cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	bridgeCtx, stopBridge := context.WithCancel(ctx)
	defer stopBridge()
	go func() {
		// Only ever returns on context cancellation.
		_ = a.bridge.Run(bridgeCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
