package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"alivecheck-backend/internal/api"
	"alivecheck-backend/internal/config"
	"alivecheck-backend/internal/db"
	"alivecheck-backend/internal/dispatch"
	"alivecheck-backend/internal/engine"
	"alivecheck-backend/internal/events"
	"alivecheck-backend/internal/kafka"
	"alivecheck-backend/internal/logging"
	"alivecheck-backend/internal/providers"
	"alivecheck-backend/internal/scheduler"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Providers are optional: an unconfigured channel degrades to
	// NOT_IMPLEMENTED step results instead of blocking startup.
	var push dispatch.PushSender
	if p, err := providers.NewPushProvider(ctx, cfg, logger); err != nil {
		logger.Warnf("Push provider disabled: %v", err)
	} else {
		push = p
	}
	var email dispatch.EmailSender
	if p, err := providers.NewEmailProvider(cfg, logger); err != nil {
		logger.Warnf("Email provider disabled: %v", err)
	} else {
		email = p
	}
	var sms dispatch.SMSSender
	if p, err := providers.NewSMSProvider(cfg, logger); err != nil {
		logger.Warnf("SMS provider disabled: %v", err)
	} else {
		sms = p
	}
	var telegram dispatch.TelegramSender
	if p, err := providers.NewTelegramProvider(cfg, logger); err != nil {
		logger.Warnf("Telegram provider disabled: %v", err)
	} else {
		telegram = p
	}

	dispatcher := dispatch.New(dbConn, dbConn, push, email, sms, telegram, logger)
	hub := events.NewHub(logger)
	eng := engine.New(dbConn, dbConn, dispatcher, hub, logger)

	var wg sync.WaitGroup

	// Periodic sweeps
	sched := scheduler.New(eng, logger, cfg.Sweep.DetectionInterval, cfg.Sweep.EscalationInterval)
	sched.Start(ctx, &wg)

	// Kafka check-in events
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, eng, logger)
		consumer.Start(ctx, &wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	} else {
		logger.Warnf("KAFKA_BROKER not set, checkin events arrive via webhook only")
	}

	// API server
	handler := api.NewHandler(dbConn, eng, hub, logger)
	router := api.NewRouter(logger, cfg, handler)
	server := &http.Server{Addr: cfg.API.Port, Handler: router}

	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("API server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Shutting down")

	cancel()
	if consumer != nil {
		consumer.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	wg.Wait()
	logger.Infof("Stopped")
}
