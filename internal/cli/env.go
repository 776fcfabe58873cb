package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tasklist/internal/api"
	"tasklist/internal/auth"
	"tasklist/internal/backend/rest"
	"tasklist/internal/commands"
	"tasklist/internal/config"
	"tasklist/internal/session"
	"tasklist/internal/tasks"
)

// NewEnv is the production EnvFactory: one credential store, one API client,
// and the auth manager and task repository on top of them.
func NewEnv(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*commands.Env, error) {
	backend, closeBackend, err := SessionBackend(cfg)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(backend)

	client := api.NewClient(store,
		api.WithBaseURL(cfg.API.URL),
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger),
		api.WithMetrics(api.NewMetrics(reg)),
	)
	logger.Debug("api client ready", "base_url", client.BaseURL(), "session_backend", cfg.Session.Backend)

	policy := tasks.Policy{DegradeOnFailure: cfg.Tasks.DegradeOnFailure}
	return &commands.Env{
		Auth:   auth.NewManager(client, logger),
		Tasks:  tasks.NewRepository(rest.New(client), policy, logger),
		Logger: logger,
		Cleanup: func() {
			client.Close()
			closeBackend()
		},
	}, nil
}

// SessionBackend opens the credential backend named by session.backend.
// The returned func releases it.
func SessionBackend(cfg *config.Config) (session.Backend, func(), error) {
	switch cfg.Session.Backend {
	case config.BackendMemory:
		return session.NewMemoryBackend(), func() {}, nil

	case config.BackendFile, "":
		if err := cfg.EnsureDir(); err != nil {
			return nil, nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		return session.NewFileBackend(cfg.Dir), func() {}, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr})
		backend := session.NewRedisBackend(rdb, session.DefaultRedisPrefix, cfg.Session.TTL)
		return backend, func() { _ = rdb.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend: %s", cfg.Session.Backend)
	}
}
