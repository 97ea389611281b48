package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/talkdataco/financial-assistant/internal/assistant"
	"github.com/talkdataco/financial-assistant/internal/config"
	"github.com/talkdataco/financial-assistant/internal/connector"
	"github.com/talkdataco/financial-assistant/internal/connector/googleanalytics"
	"github.com/talkdataco/financial-assistant/internal/connector/stripe"
	"github.com/talkdataco/financial-assistant/internal/history"
	"github.com/talkdataco/financial-assistant/internal/llm"
	"github.com/talkdataco/financial-assistant/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	provider, err := llm.NewProvider(&cfg.LLM)
	if err != nil {
		log.Fatalf("failed to create LLM provider: %v", err)
	}

	connectors, err := buildConnectors(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to create data connectors: %v", err)
	}

	var hist *history.Store
	if cfg.History.Enabled() {
		hist, err = history.Open(ctx, cfg.History.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open query history: %v", err)
		}
		defer hist.Close()
	}

	asst := assistant.New(provider, connector.NewFetcher(connectors...), hist, cfg.LLM.Model)

	srv := server.New(cfg.Server, asst, hist)
	slog.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func buildConnectors(ctx context.Context, cfg *config.Config) ([]connector.Connector, error) {
	var connectors []connector.Connector

	if cfg.GoogleAnalytics.Enabled() {
		ga, err := googleanalytics.New(ctx, cfg.GoogleAnalytics)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, wrapCache(ga, cfg))
		slog.Info("google analytics connector enabled", "property", cfg.GoogleAnalytics.PropertyID)
	}

	if cfg.Stripe.Enabled() {
		connectors = append(connectors, wrapCache(stripe.New(cfg.Stripe), cfg))
		slog.Info("stripe connector enabled")
	}

	return connectors, nil
}

func wrapCache(c connector.Connector, cfg *config.Config) connector.Connector {
	if !cfg.Redis.Enabled() {
		return c
	}
	return connector.WithCache(c, connector.NewRedisClient(cfg.Redis), cfg.Redis.CacheTTL)
}
