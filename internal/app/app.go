package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/orgchat/orgchat-server/internal/auth"
	"github.com/orgchat/orgchat-server/internal/config"
	"github.com/orgchat/orgchat-server/internal/core"
	"github.com/orgchat/orgchat-server/internal/pubsub"
	"github.com/orgchat/orgchat-server/internal/store"
	"github.com/orgchat/orgchat-server/internal/store/sqlite"
	transporthttp "github.com/orgchat/orgchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	bridge          *pubsub.RedisBridge
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt_secret must be configured")
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)
	gate := auth.NewGate(st, jwtConfig)

	var bridge *pubsub.RedisBridge
	var hubBridge core.Bridge
	if cfg.RedisAddr != "" {
		bridge, err = pubsub.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init redis bridge: %w", err)
		}
		hubBridge = bridge
	}

	hub := core.NewHub(st, logger, core.Options{
		OfflineGrace: cfg.OfflineGrace,
		Bridge:       hubBridge,
	})
	server := transporthttp.NewServer(hub, gate, authService, jwtConfig, st, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		bridge:          bridge,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

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
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis bridge")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
