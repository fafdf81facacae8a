package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/hrm/internal/contract/config"
	"github.com/gartstein/hrm/internal/contract/controller"
	"github.com/gartstein/hrm/internal/contract/db"
	"github.com/gartstein/hrm/internal/contract/events"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := initLogger(cfg.LogDevelopment)
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	repo, err := db.NewRepository(cfg.Database())
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.EventsTopic)
	if err != nil {
		logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	svc := controller.NewContractService(repo, producer, logger, controller.Options{
		ApprovalLevels:  cfg.ApprovalLevels,
		ConflictRetries: cfg.ConflictRetries,
		DefaultRegion:   cfg.DefaultRegion,
		DefaultGrade:    cfg.DefaultGrade,
		MaxDeviation:    cfg.MaxDeviation(),
	})

	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.CommandsTopic, logger)
	consumer.RegisterHandler(svc.HandleCommand)

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)
	logger.Info("contract service started",
		zap.String("commands_topic", cfg.CommandsTopic),
		zap.String("events_topic", cfg.EventsTopic),
	)

	waitForShutdown(cancel, consumer, logger)
}

// initLogger builds a production logger, or a development one when asked.
func initLogger(development bool) *zap.Logger {
	if development {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, then
// stops consuming and waits for the in-flight command to finish.
func waitForShutdown(cancel context.CancelFunc, consumer *events.Consumer, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancel()
	consumer.Close()
	<-consumer.Done()
	logger.Info("consumer stopped properly")
}
