package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/shoproom/internal/adapters/http"
	"github.com/dkeye/shoproom/internal/adapters/signal"
	"github.com/dkeye/shoproom/internal/app"
	"github.com/dkeye/shoproom/internal/app/cart"
	"github.com/dkeye/shoproom/internal/app/offer"
	"github.com/dkeye/shoproom/internal/app/orch"
	"github.com/dkeye/shoproom/internal/app/refund"
	"github.com/dkeye/shoproom/internal/config"
	"github.com/dkeye/shoproom/internal/events"
	"github.com/dkeye/shoproom/internal/metrics"
	"github.com/dkeye/shoproom/internal/pricing"
	"github.com/dkeye/shoproom/internal/storage"
)

func main() {
	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()
	var health []router.HealthCheck

	cartStore, closeCarts, err := openCartStore(ctx, cfg, &health)
	if err != nil {
		return err
	}
	defer closeCarts()

	refundStore, closeRefunds, err := openRefundStore(cfg, &health)
	if err != nil {
		return err
	}
	defer closeRefunds()

	var publisher refund.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), cfg.Kafka.WriteTimeout)
		defer func() {
			if err := kp.Close(); err != nil {
				log.Warn().Err(err).Msg("kafka writer close")
			}
		}()
		publisher = kp
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("refund events enabled")
	}

	catalog, err := pricing.NewCatalog(cfg.PriceTable())
	if err != nil {
		return fmt.Errorf("price catalog: %w", err)
	}

	o := orch.New(app.NewRegistry(), app.NewRoomManager(), app.SimplePolicy{}, m)
	carts := cart.NewService(cartStore, m)
	offers := offer.NewEngine(o, catalog)
	refunds := refund.NewService(refundStore, refundStore, publisher, m)
	ws := signal.NewSignalWSController(o, carts, offers, signal.Settings{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:    o,
		Carts:   carts,
		Offers:  offers,
		Refunds: refunds,
		Orders:  refundStore,
		Signal:  ws,
		Metrics: m,
		Health:  health,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("shoproom server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})
	return g.Wait()
}

// refundBackend is what the refund service and the order endpoint need from storage.
type refundBackend interface {
	refund.Store
	refund.Ledger
	router.OrderLedger
}

func openCartStore(ctx context.Context, cfg *config.Config, health *[]router.HealthCheck) (cart.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("cart store: memory")
		return storage.NewMemoryCartStore(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// the breaker takes over while redis is down
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable at startup")
	}
	*health = append(*health, router.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}})
	store := storage.NewBreakerCartStore(storage.NewRedisCartStore(client, cfg.Redis.CartTTL), storage.BreakerSettings{
		Name:             "cart-store",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout,
	})
	log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.CartTTL).Msg("cart store: redis")
	return store, func() { _ = client.Close() }, nil
}

func openRefundStore(cfg *config.Config, health *[]router.HealthCheck) (refundBackend, func(), error) {
	if cfg.SQLite.Path == "" {
		log.Info().Msg("refund store: memory")
		return storage.NewMemoryRefundStore(), func() {}, nil
	}
	s, err := storage.OpenSQLite(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, err
	}
	*health = append(*health, router.HealthCheck{Name: "sqlite", Check: s.Ping})
	log.Info().Str("path", cfg.SQLite.Path).Msg("refund store: sqlite")
	return s, func() { _ = s.Close() }, nil
}
