package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hidangan/delivery-api/internal/cart"
	"github.com/hidangan/delivery-api/internal/config"
	"github.com/hidangan/delivery-api/internal/database"
	"github.com/hidangan/delivery-api/internal/events"
	"github.com/hidangan/delivery-api/internal/logger"
	"github.com/hidangan/delivery-api/internal/notify"
	"github.com/hidangan/delivery-api/internal/router"
	"github.com/hidangan/delivery-api/internal/service"
	"github.com/hidangan/delivery-api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// alertStateTTL bounds how long an idle restaurant's alert state is kept.
const alertStateTTL = 7 * 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info("connected to database")

	alertStore := notify.StateStore(notify.NewMemoryStore())
	cartStore := cart.Store(cart.NewMemoryStore())
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		alertStore = notify.NewRedisStore(rdb, alertStateTTL)
		cartStore = cart.NewRedisStore(rdb, cfg.CartTTL)
		log.Info("using redis for alert state and carts", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("REDIS_ADDR not set; alert state and carts are kept in memory")
	}

	hub := ws.NewHub(log.Named("ws"))
	publisher := events.Multi{hub}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, log.Named("kafka"))
		if err != nil {
			return err
		}
		defer kafka.Close()
		publisher = append(publisher, kafka)
	}

	queries := database.New(pool)
	orders := service.NewOrderService(pool, queries,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		service.OrderServiceConfig{
			StrictPricing: cfg.PricingStrict,
			Tracker:       notify.NewTracker(alertStore),
			Publisher:     publisher,
			Logger:        log.Named("orders"),
		},
	)
	hub.OnAck(orders.AcknowledgeAlert)
	go hub.Run(ctx)

	carts := cart.NewService(cartStore, cfg.CartSaveDebounce, log.Named("cart"))
	defer carts.Flush()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(cfg, router.Deps{
			Queries: queries,
			Orders:  orders,
			Cart:    carts,
			Hub:     hub,
			Logger:  log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
