// Command ask answers a single question from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/talkdataco/financial-assistant/apimodels"
	"github.com/talkdataco/financial-assistant/internal/assistant"
	"github.com/talkdataco/financial-assistant/internal/config"
	"github.com/talkdataco/financial-assistant/internal/connector"
	"github.com/talkdataco/financial-assistant/internal/connector/googleanalytics"
	"github.com/talkdataco/financial-assistant/internal/connector/stripe"
	"github.com/talkdataco/financial-assistant/internal/llm"
)

func main() {
	queryFlag := flag.String("q", "", "question to answer")
	insightsFlag := flag.Bool("insights", false, "also generate insights")
	modelFlag := flag.String("model", "", "override the configured model")
	flag.Parse()

	if *queryFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: ask -q \"What was my conversion rate last month?\" [-insights] [-model name]")
		os.Exit(2)
	}

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

	var connectors []connector.Connector
	if cfg.GoogleAnalytics.Enabled() {
		ga, err := googleanalytics.New(ctx, cfg.GoogleAnalytics)
		if err != nil {
			log.Fatalf("failed to create google analytics connector: %v", err)
		}
		connectors = append(connectors, ga)
	}
	if cfg.Stripe.Enabled() {
		connectors = append(connectors, stripe.New(cfg.Stripe))
	}

	asst := assistant.New(provider, connector.NewFetcher(connectors...), nil, cfg.LLM.Model)

	resp, err := asst.Answer(ctx, apimodels.QueryRequest{
		Query: *queryFlag,
		Options: apimodels.QueryOptions{
			Model:           *modelFlag,
			IncludeInsights: *insightsFlag,
		},
	})
	if err != nil {
		log.Fatalf("failed to answer query: %v", err)
	}

	fmt.Println(resp.Answer)

	if len(resp.Insights) > 0 {
		fmt.Println("\nInsights:")
		for _, insight := range resp.Insights {
			fmt.Println("  -", insight)
		}
	}

	if len(resp.FollowUpQuestions) > 0 {
		fmt.Println("\nYou could ask next:")
		for _, q := range resp.FollowUpQuestions {
			fmt.Println("  -", q)
		}
	}

	fmt.Printf("\n[%s | %s | %d tokens]\n", resp.Metadata.Model, resp.Metadata.Duration, resp.Metadata.TokensUsed)
}
