package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mtr002/bansu-harness/internal/api"
	"github.com/mtr002/bansu-harness/internal/logger"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	logger.Init("bansu-stub")

	port := getEnv("STUB_PORT", "8080")
	prefix := getEnv("STUB_PREFIX", "")
	scenario, err := api.LookupScenario(getEnv("STUB_SCENARIO", "finished"))
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Invalid scenario")
	}

	server := api.NewServer(scenario, prefix, port)
	go func() {
		if err := server.Start(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Stub server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Logger.Warn().Err(err).Msg("Shutdown did not complete")
	}
	logger.Logger.Info().Msg("Stub server stopped")
}
