package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/api"
	"github.com/wealthwatch/portfolio-service/internal/config"
	"github.com/wealthwatch/portfolio-service/internal/database"
	"github.com/wealthwatch/portfolio-service/internal/events"
	"github.com/wealthwatch/portfolio-service/internal/hub"
	"github.com/wealthwatch/portfolio-service/internal/kafka"
	"github.com/wealthwatch/portfolio-service/internal/marketdata"
	"github.com/wealthwatch/portfolio-service/internal/poller"
)

const quoteCacheTTL = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate("db/migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	quoteCache := marketdata.NewCache(rdb, quoteCacheTTL)
	provider := marketdata.NewClient(cfg.Market.BaseURL, cfg.Market.Timeout)
	quotes := marketdata.NewService(provider, quoteCache, logger)
	recorder := marketdata.NewRecorder(quoteCache, db)

	eventHub := hub.New(logger)

	var mirror events.Mirror
	var producer *kafka.Producer
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		mirror = producer
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, eventHub, logger)
		defer consumer.Close()
	}

	emitter := events.New(eventHub, mirror, logger)

	p := poller.New(db, provider, eventHub, recorder, logger, poller.Options{
		Interval:     cfg.Poller.Interval,
		FetchTimeout: cfg.Poller.FetchTimeout,
		Workers:      cfg.Poller.Workers,
	})

	handler := api.NewHandler(db, quotes, db, emitter, logger)
	wsHandler := api.NewWSHandler(eventHub, logger)
	router := api.SetupRoutes(handler, wsHandler, cfg.Auth.JWTSecret)

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()

	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}

	wg.Wait()
	logger.Info("shutdown complete")
}
