// Package main - точка входа движка прогрессии.
//
// Движок держит авторитетное состояние прогресса, экономики и достижений
// в памяти, сериализует все мутации одним писателем и фиксирует каждую
// единицу работы в выбранном хранилище до того, как её увидят читатели.
//
// Архитектура:
// - Domain: чистая бизнес-логика (прогресс, экономика, достижения)
// - Application: движок-сериализатор и проекция для читателей
// - Infrastructure: key-value хранилища (memory, postgres, redis)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/debugmaster-hub/progression-engine/config"
	"github.com/debugmaster-hub/progression-engine/internal/application/engine"
	"github.com/debugmaster-hub/progression-engine/internal/application/projection"
	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/kv"
	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/debugmaster-hub/progression-engine/pkg/logger"
	"github.com/debugmaster-hub/progression-engine/pkg/retry"
	"github.com/debugmaster-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.Observability.LogCaller,
	})
	log.Info("starting progression engine",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("backend", cfg.Storage.Backend),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}
	defer func() {
		log.Info("closing store...")
		if err := store.Close(); err != nil {
			log.Warn("store close failed", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПРОЕКЦИЯ И ДВИЖОК
	// ─────────────────────────────────────────────────────────────────────────
	proj := projection.New(log)
	defer proj.Close()

	engineCfg := engine.Config{
		WeekendBonus: cfg.Progression.WeekendBonus,
		DailyReward:  cfg.Progression.DailyReward,
		Milestones:   cfg.Progression.Milestones,
	}
	eng, err := engine.New(ctx, kv.NewRepository(store), engine.Options{
		Clock:     timeutil.NewSystemClock(cfg.App.Location),
		Publisher: proj,
		Config:    &engineCfg,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if err := eng.RecordAppOpened(ctx); err != nil {
		log.Warn("failed to record app open", logger.Err(err))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПОДПИСЧИК СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	subID, updates, err := proj.Subscribe(64)
	if err != nil {
		return fmt.Errorf("failed to subscribe to projection: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case update, ok := <-updates:
				if !ok {
					return nil
				}
				for _, event := range update.Events {
					log.Info("event",
						logger.String("type", string(event.EventType())),
						logger.F("seq", update.Snapshot.Seq),
						logger.Any("payload", event.Payload()),
					)
				}
			}
		}
	})

	snap := eng.Snapshot()
	log.Info("progression engine is running",
		logger.F("level", snap.Level()),
		logger.XPAmount(snap.Progress.XP),
		logger.Streak(snap.Progress.CurrentStreak),
		logger.Gems(snap.Wallet.Gems),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutdown signal received")

	proj.Unsubscribe(subID)
	if err := g.Wait(); err != nil {
		log.Warn("subscriber stopped with error", logger.Err(err))
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE SELECTION
// ══════════════════════════════════════════════════════════════════════════════

// openStore поднимает хранилище по конфигурации. Подключение к удалённым
// бэкендам повторяется с экспоненциальной задержкой: при старте сервис
// базы мог ещё не подняться.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (kv.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory store, state will not survive restarts")
		return memory.NewStore(), nil

	case config.BackendPostgres:
		var store *postgres.Store
		err := connectRetrier(cfg).Do(ctx, func(ctx context.Context) error {
			conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			store, err = postgres.NewStore(ctx, conn)
			if err != nil {
				conn.Close()
				return err
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		log.Info("postgres store ready")
		return store, nil

	case config.BackendRedis:
		redisCfg := redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}
		var store *redis.Store
		err := connectRetrier(cfg).Do(ctx, func(ctx context.Context) error {
			var err error
			store, err = redis.NewStore(ctx, redisCfg)
			return err
		})
		if err != nil {
			return nil, err
		}
		log.Info("redis store ready", logger.String("addr", redisCfg.Addr()))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func connectRetrier(cfg *config.Config) *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(cfg.Storage.ConnectRetries),
		retry.WithInitialDelay(cfg.Storage.ConnectBaseDelay),
		retry.WithMaxDelay(cfg.Storage.ConnectMaxDelay),
		retry.WithMultiplier(2.0),
		retry.WithJitter(0.2),
	)
}
