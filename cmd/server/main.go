package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/atag/internal/config"
	"github.com/agenthands/atag/internal/core"
	"github.com/agenthands/atag/internal/logging"
	"github.com/agenthands/atag/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfg := config.Default()
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	if loaded, err := config.Load(cfgPath); err == nil {
		cfg = loaded
	} else if os.Getenv("CONFIG_PATH") != "" {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	backend, err := server.NewBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer backend.Close(ctx)

	srv := server.NewServer(core.NewAtag(backend, cfg, logger), logger.Named("server"))
	r := srv.SetupRouter()

	logger.Info("Starting server", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Backend))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
