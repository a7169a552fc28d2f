package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/mugummy/chzzkbot/internal/config"
	"github.com/mugummy/chzzkbot/internal/cooldown"
	"github.com/mugummy/chzzkbot/internal/domain"
	"github.com/mugummy/chzzkbot/internal/gateway"
	"github.com/mugummy/chzzkbot/internal/logging"
	"github.com/mugummy/chzzkbot/internal/persist"
	"github.com/mugummy/chzzkbot/internal/redis"
	"github.com/mugummy/chzzkbot/internal/server"
	"github.com/mugummy/chzzkbot/internal/session"
	"github.com/mugummy/chzzkbot/internal/version"
	"github.com/mugummy/chzzkbot/internal/websocket"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupSnapshots picks the snapshot repository. No DATABASE_URL means
// in-memory state that dies with the process.
func setupSnapshots(cfg *config.Config) (domain.SnapshotRepository, *pgxpool.Pool) {
	if cfg.DatabaseURL == "" {
		slog.Warn("No DATABASE_URL configured, channel state will not survive restarts")
		return persist.NewMemoryRepository(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := persist.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	repo := persist.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return repo, pool
}

// setupCooldowns picks the song request cooldown gate. The cleanup func stops
// the memory gate's prune timer and is a no-op for the Redis gate.
func setupCooldowns(cfg *config.Config, clock clockwork.Clock) (domain.CooldownGate, *redis.Client, func()) {
	if cfg.RedisURL == "" {
		gate := cooldown.NewMemoryGate(clock)
		stop := gate.StartPruneTimer(10 * time.Minute)
		return gate, nil, stop
	}

	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return redis.NewCooldownGate(client, "songcd"), client, func() {}
}

func runGracefulShutdown(srv *server.Server, registry *session.Registry, hub *websocket.Hub, coordinator *persist.Coordinator) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Sessions stop first so no new snapshots get staged, then the
		// coordinator writes everything still pending.
		registry.Shutdown()
		hub.Stop()

		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelFlush()
		if err := coordinator.Flush(flushCtx); err != nil {
			slog.Error("Failed to flush pending snapshots", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	repo, pool := setupSnapshots(cfg)
	if pool != nil {
		defer pool.Close()
	}

	songGate, redisClient, stopPrune := setupCooldowns(cfg, clock)
	defer stopPrune()
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	coordinator := persist.NewCoordinator(repo, clock, cfg.DebounceWindow, slog.Default())

	chzzk := gateway.NewClient(cfg.ChzzkAPIBaseURL, cfg.ChzzkAccessToken, slog.Default())

	var sender domain.ChatSender = chzzk
	if cfg.ChzzkAccessToken == "" {
		slog.Warn("No CHZZK_ACCESS_TOKEN configured, chat replies go to the log only")
		sender = gateway.NewLogSender(slog.Default())
	}

	// Hub and registry reference each other: the hub activates sessions on
	// first connect, sessions broadcast through the hub. The closures only
	// run once the server is serving, after registry is assigned.
	var registry *session.Registry
	hub := websocket.NewHub(slog.Default(), websocket.HubOptions{
		MaxClientsPerChannel: cfg.MaxClientsPerChannel,
		OnFirstConnect: func(channelID string) error {
			_, err := registry.Activate(context.Background(), channelID)
			return err
		},
		Resync: func(channelID string) []websocket.Envelope {
			sess, ok := registry.Lookup(channelID)
			if !ok {
				return nil
			}
			states, err := sess.FeatureStates()
			if err != nil {
				return nil
			}
			envelopes := make([]websocket.Envelope, 0, len(states))
			for _, tag := range domain.AllFeatures() {
				if payload, ok := states[tag]; ok {
					envelopes = append(envelopes, websocket.Envelope{Type: tag, Payload: payload})
				}
			}
			return envelopes
		},
	})

	registry = session.NewRegistry(repo, session.Deps{
		Clock:                clock,
		Logger:               slog.Default(),
		Sender:               sender,
		Broadcaster:          hub,
		Persister:            coordinator,
		SongResolver:         gateway.NewOEmbedResolver(),
		LiveSource:           chzzk,
		SongGate:             songGate,
		PointsSignalInterval: cfg.PointsSignalInterval,
	})

	serverDeps := server.Deps{
		Config:   cfg,
		Registry: registry,
		Hub:      hub,
		Logger:   slog.Default(),
	}
	// Assign only when present to avoid typed-nil interfaces.
	if pool != nil {
		serverDeps.Postgres = pool
	}
	if redisClient != nil {
		serverDeps.Redis = redisClient
	}
	srv := server.NewServer(serverDeps)

	done := runGracefulShutdown(srv, registry, hub, coordinator)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
