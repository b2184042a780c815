// Package app wires configuration, sessions and the broker for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"brokerage-mcp/internal/broker/brokerobs"
	"brokerage-mcp/internal/broker/kite"
	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/session"
	"brokerage-mcp/internal/store"
	"brokerage-mcp/internal/trace"
	"brokerage-mcp/internal/tradelog"
	"brokerage-mcp/internal/types"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// InitializeSystem loads .env and initializes the logger and tracer.
func InitializeSystem(version string) error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// LoadConfig loads and returns the configuration. A missing file yields the
// defaults.
func LoadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn(ctx, "Config file not found, using defaults", "path", path)
		cfg, err = store.ParseConfig(nil)
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// InitializeSessions builds the session manager for the configured store and
// restores the last session. KITE_ACCESS_TOKEN seeds the session when none
// was restored. The returned func releases the store.
func InitializeSessions(ctx context.Context, cfg *store.Config) (*session.Manager, func(), error) {
	var (
		st      interfaces.SessionStore
		cleanup = func() {}
	)
	switch cfg.Session.Store {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       cfg.Session.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis: ping: %w", err)
		}
		st = session.NewRedisStore(rdb, cfg.Session.RedisKey)
		cleanup = func() { _ = rdb.Close() }
		logger.Info(ctx, "Using Redis session store", "addr", cfg.Session.RedisAddr)
	default:
		st = session.NewFileStore(cfg.Session.File)
		logger.Info(ctx, "Using file session store", "path", cfg.Session.File)
	}

	mgr := session.NewManager(st)
	if err := mgr.Restore(ctx); err != nil {
		logger.Warn(ctx, "Could not restore session", "error", err)
	}

	if _, err := mgr.Current(); err != nil {
		if token := strings.TrimSpace(os.Getenv("KITE_ACCESS_TOKEN")); token != "" {
			sess, err := mgr.Set(ctx, types.Session{APIKey: cfg.Kite.APIKey, AccessToken: token})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("seed session from KITE_ACCESS_TOKEN: %w", err)
			}
			logger.Info(ctx, "Session seeded from KITE_ACCESS_TOKEN", "expires_at", sess.ExpiresAt)
		}
	}
	return mgr, cleanup, nil
}

// InitializeBroker initializes and returns the broker instance with observability
func InitializeBroker(ctx context.Context, cfg *store.Config, sessions *session.Manager) interfaces.Broker {
	client := kite.NewClient(cfg.Kite.APIKey, cfg.Timeout())
	brk := kite.New(kite.Params{
		Mode:          cfg.Mode,
		APIKey:        cfg.Kite.APIKey,
		APISecret:     cfg.Kite.APISecret,
		Exchange:      cfg.Exchange,
		Product:       cfg.Product,
		RateLimit:     cfg.Kite.RateLimit,
		InstrumentTTL: cfg.InstrumentTTL(),
	}, client, sessions)

	if brk.DryRun() {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}
	if cfg.Kite.APIKey == "" {
		logger.Warn(ctx, "KITE_API_KEY is not set - login will fail")
	}

	return brokerobs.Wrap(brk)
}

// InitializeJournal opens the trade journal and compresses days past the
// retention window.
func InitializeJournal(ctx context.Context, cfg *store.Config) *tradelog.Journal {
	j := tradelog.New(cfg.Journal.Dir)
	if err := j.CompressOlder(cfg.Journal.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old journal files", "error", err)
	}
	return j
}
