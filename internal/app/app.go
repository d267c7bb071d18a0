package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"UserService/internal/auth"
	"UserService/internal/cache"
	"UserService/internal/config"
	"UserService/internal/events"
	"UserService/internal/handlers"
	"UserService/internal/metrics"
	"UserService/internal/repo"
	"UserService/internal/session"
	"UserService/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	connectAttempts = 5
	connectBackoff  = 200 * time.Millisecond
)

type App struct {
	cfg      config.Config
	log      *slog.Logger
	db       *pgxpool.Pool
	redis    *redis.Client
	sessions session.Store
	events   events.Publisher
	router   *gin.Engine

	stopSweep context.CancelFunc
	sweepDone sync.WaitGroup
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(context.Background())
		}
	}()

	var users repo.UserRepo
	database := handlers.Dependency{Name: "in-memory"}
	if cfg.PG.DSN != "" {
		if cfg.PG.Migrate {
			if err := Migrate(ctx, cfg.PG.DSN, "up"); err != nil {
				return nil, err
			}
			log.Info("migrations applied")
		}
		db, err := newPostgres(ctx, cfg.PG)
		if err != nil {
			return nil, err
		}
		a.db = db
		users = repo.NewPGUserRepo(db)
		database = handlers.Dependency{Name: "postgres", Pinger: db}
	} else {
		log.Warn("PG_DSN not set, users are kept in memory")
		users = repo.NewMemoryUserRepo()
	}

	if cfg.Redis.Enabled() {
		rdb, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = rdb
	}

	sessions, sessionsDep, err := a.newSessionStore(ctx)
	if err != nil {
		return nil, err
	}
	a.sessions = sessions

	if len(cfg.Kafka.Brokers) > 0 {
		p, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		a.events = p
	} else {
		a.events = events.NewLogPublisher(log)
	}

	var userCache *cache.UserCache
	if a.redis != nil {
		userCache = cache.NewUserCache(a.redis, cfg.Redis.DefaultTTL.Duration())
	}

	router, err := NewRouter(cfg, Deps{
		Log:      log,
		Users:    users,
		Sessions: sessions,
		Cache:    userCache,
		Events:   a.events,
		Metrics:  metrics.New(),
		Database: database,
		Session:  sessionsDep,
	})
	if err != nil {
		return nil, err
	}
	a.router = router
	ok = true
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Close stops the background sweep, waiting at most until ctx is done, and
// releases every connection. It is safe to call on a partly built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.stopSweep != nil {
		a.stopSweep()
		done := make(chan struct{})
		go func() {
			a.sweepDone.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("session sweep: %w", ctx.Err()))
		}
	}
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		a.db.Close()
	}
	return errors.Join(errs...)
}

func (a *App) newSessionStore(ctx context.Context) (session.Store, handlers.Dependency, error) {
	cfg := a.cfg.Session
	opts := session.Options{TTL: cfg.TTL.Duration(), Sliding: cfg.Sliding}

	switch cfg.Backend {
	case session.BackendRedis:
		if a.redis == nil {
			return nil, handlers.Dependency{}, errors.New("redis session backend needs a redis connection")
		}
		s := session.NewRedisStore(a.redis, cfg.KeyPrefix, opts)
		return s, handlers.Dependency{Name: session.BackendRedis, Pinger: s}, nil
	case session.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, handlers.Dependency{}, fmt.Errorf("session dir: %w", err)
			}
		}
		s, err := session.OpenSQLiteStore(ctx, cfg.SQLitePath, opts)
		if err != nil {
			return nil, handlers.Dependency{}, err
		}
		a.sweep(s, cfg.SweepInterval.Duration())
		return s, handlers.Dependency{Name: session.BackendSQLite, Pinger: s}, nil
	default:
		s := session.NewMemoryStore(opts, cfg.SweepInterval.Duration())
		return s, handlers.Dependency{Name: session.BackendMemory}, nil
	}
}

// sweep purges expired rows of the sqlite store until Close.
func (a *App) sweep(s *session.SQLiteStore, every time.Duration) {
	if every <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.stopSweep = cancel
	a.sweepDone.Add(1)
	go func() {
		defer a.sweepDone.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := s.PurgeExpired(ctx)
				if err != nil {
					a.log.Warn("session sweep failed", "error", err)
					continue
				}
				if n > 0 {
					a.log.Debug("expired sessions removed", "count", n)
				}
			}
		}
	}()
}

func newPostgres(ctx context.Context, c config.PGConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = c.MaxConns
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	err = utils.Retry(ctx, connectAttempts, connectBackoff, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return pool, nil
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	err := utils.Retry(ctx, connectAttempts, connectBackoff, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// hasherFor builds the password hasher selected by the auth config.
func hasherFor(cfg config.AuthConfig) *auth.Hasher {
	return auth.NewHasher(cfg.HashAlgorithm, cfg.BcryptCost)
}
