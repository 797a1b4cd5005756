package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/snaptastic/snaptastic/internal/api"
	"github.com/snaptastic/snaptastic/internal/config"
	"github.com/snaptastic/snaptastic/internal/database"
	"github.com/snaptastic/snaptastic/internal/freepik"
	"github.com/snaptastic/snaptastic/internal/repository"
	"github.com/snaptastic/snaptastic/internal/service"
	"github.com/snaptastic/snaptastic/internal/storage"
	"github.com/snaptastic/snaptastic/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	freepikClient := freepik.NewClient(cfg, logr)

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	photoRepo := repository.NewPhotoRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)

	userService := service.NewUserService(cfg, userRepo, sessionRepo)
	creditService := service.NewCreditService(cfg, logr, creditRepo)
	photoService := service.NewPhotoService(photoRepo)
	enhanceService := service.NewEnhanceService(cfg, logr, creditService, photoRepo, freepikClient)
	subscriptionService := service.NewSubscriptionService(cfg, logr, subscriptionRepo, creditService)

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	})
	if err != nil {
		log.Fatalf("storage uploader: %v", err)
	}

	server := api.NewServer(cfg, logr, userService, creditService, photoService, enhanceService, subscriptionService, uploader)

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}
