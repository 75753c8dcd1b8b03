package main

import (
	"BodyMeasure/internal/config"
	"BodyMeasure/pkg/log"
	"errors"
	"github.com/joho/godotenv"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.NewLogger().Fatalf("Error loading .env file: %v", err)
	}

	logger := log.NewLogger()

	validator := config.NewValidator()
	settings, err := config.LoadSettings(validator)
	if err != nil {
		logger.Fatal(err)
	}

	fiberApp := config.NewFiber(logger, settings)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithSettings(settings),
		config.WithValidator(validator),
		config.WithUtils(),
		config.WithMiddleware(),
		config.WithEstimator(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.WithFields(log.Fields{
		"address":         settings.Address(),
		"allowed_origins": settings.AllowedOrigins,
		"allow_all":       settings.AllowAllOrigins,
		"model_backend":   settings.ModelBackend,
	}).Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(10 * time.Second); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
