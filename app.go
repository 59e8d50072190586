package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wricardo/gobang-online/api"
	"github.com/wricardo/gobang-online/auth"
	"github.com/wricardo/gobang-online/directory"
	"github.com/wricardo/gobang-online/game/config"
	"github.com/wricardo/gobang-online/game/presence"
	"github.com/wricardo/gobang-online/game/service"
	"github.com/wricardo/gobang-online/transport/websocket"
)

// application holds the wired services of one server process.
type application struct {
	cfg *config.Config
	log zerolog.Logger

	store       directory.Store
	presence    *presence.Registry
	hub         *websocket.Hub
	coordinator service.Coordinator
	auth        *auth.Provider
	metrics     *prometheus.Registry

	closers []func() error
}

// newApplication wires the directory, presence registry, hub, coordinator
// and auth provider. The hub is not running yet; call run.
func newApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*application, error) {
	app := &application{cfg: cfg, log: log}

	store, closeStore, err := newDirectory(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create user directory: %w", err)
	}
	if closeStore != nil {
		app.closers = append(app.closers, closeStore)
	}
	app.store = store

	if err := seedUsers(ctx, store, cfg.Seeds(), log); err != nil {
		app.Close()
		return nil, err
	}

	app.metrics = prometheus.NewRegistry()
	app.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.presence = presence.NewRegistry(presence.WithClaimTTL(cfg.LoginClaimTTL))
	app.hub = websocket.NewHub(
		websocket.WithLogger(log),
		websocket.WithAllowedOrigins(cfg.AllowedOrigins),
	)
	app.coordinator = service.NewCoordinator(app.hub, store, app.presence,
		service.WithLogger(log),
		service.WithMetricsRegistry(app.metrics),
	)
	app.hub.SetCoordinator(app.coordinator)
	app.auth = auth.NewProvider(store, app.presence, auth.WithLogger(log))

	return app, nil
}

// run starts the hub loop; it stops when ctx is done.
func (a *application) run(ctx context.Context) {
	go a.hub.Run(ctx)
}

// handler builds the HTTP surface. mcpServer may be nil.
func (a *application) handler(mcpServer *server.MCPServer) http.Handler {
	opts := []api.Option{
		api.WithLogger(a.log),
		api.WithStaticDir(a.cfg.StaticDir),
		api.WithVersion(Version),
		api.WithGatherer(a.metrics),
	}
	if mcpServer != nil {
		opts = append(opts, api.WithMCPServer(mcpServer))
	}
	return api.NewServer(a.coordinator, a.auth, a.hub, opts...)
}

// Close releases backend connections.
func (a *application) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newDirectory opens the configured user directory. The returned closer may
// be nil.
func newDirectory(ctx context.Context, cfg *config.Config, log zerolog.Logger) (directory.Store, func() error, error) {
	switch cfg.Directory {
	case config.DirectoryFile:
		store, err := directory.NewFile(cfg.DirectoryPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.DirectoryPath).Msg("using file user directory")
		return store, nil, nil

	case config.DirectoryRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := directory.NewRedis(client, cfg.RedisPrefix)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			client.Close()
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("using redis user directory")
		return store, client.Close, nil

	default:
		if len(cfg.SeedUsers) == 0 {
			log.Warn().Msg("memory user directory has no users; pass --seed-users")
		}
		return directory.NewMemory(), nil, nil
	}
}

// seedUsers creates the configured users that do not exist yet. Existing
// records, and their scores, are left alone.
func seedUsers(ctx context.Context, store directory.Store, seeds []config.Seed, log zerolog.Logger) error {
	for _, seed := range seeds {
		_, err := store.FindByIdentity(ctx, seed.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, directory.ErrUserNotFound) {
			return fmt.Errorf("failed to look up seed user %s: %w", seed.Username, err)
		}

		rec := directory.Record{Username: seed.Username}
		if seed.Password != "" {
			hash, err := directory.HashPassword(seed.Password)
			if err != nil {
				return fmt.Errorf("failed to seed user %s: %w", seed.Username, err)
			}
			rec.Password = hash
		}
		if err := store.Save(ctx, rec); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", seed.Username, err)
		}
		log.Debug().Str("user", seed.Username).Msg("seeded user")
	}
	return nil
}

// loopbackURL is the address in-process clients such as the MCP proxy use to
// reach the API.
func loopbackURL(cfg *config.Config) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}
