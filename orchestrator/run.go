// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/cors"

	"axonflow/scribe/orchestrator/llm"
	"axonflow/scribe/orchestrator/llm/bedrock"
	"axonflow/scribe/orchestrator/llm/gemini"
	"axonflow/scribe/orchestrator/llm/openai"
	"axonflow/scribe/shared/logger"
)

// Run is the exported entry point for the Scribe orchestration service.
//
// It loads configuration, builds the LLM adapter and knowledge store, wires
// the engine and HTTP surface, and blocks serving requests until the process
// is stopped.
//
// Environment variables used:
//   - PORT / HOST: HTTP listen address (default: 8080 / 0.0.0.0)
//   - LLM_PROVIDER: gemini, openai or bedrock (default: gemini)
//   - GEMINI_API_KEY / OPENAI_API_KEY: provider credentials
//   - REDIS_ADDR: knowledge cache (default: localhost:6379, "" disables)
func Run() {
	log.Println("Starting Scribe Orchestration Engine...")

	cfg := LoadConfig()

	engine, err := buildEngine(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize orchestration engine: %v", err)
	}

	r := NewHandler(engine).Router()

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)
	log.Printf("Scribe Orchestration Engine listening on %s (provider: %s)", cfg.Addr(), cfg.LLMProvider)
	log.Fatal(http.ListenAndServe(cfg.Addr(), handler))
}

// buildEngine assembles the full pipeline from configuration: provider,
// adapter, knowledge store, workers, coordinators, planner and evaluator.
func buildEngine(ctx context.Context, cfg Config) (*Engine, error) {
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var profiles map[string]llm.ModelProfile
	if cfg.ProfilesConfig != "" {
		profiles, err = llm.LoadProfiles(cfg.ProfilesConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load model profiles: %w", err)
		}
	}

	adapter, err := llm.NewAdapter(llm.AdapterConfig{
		Provider: provider,
		Profiles: profiles,
	})
	if err != nil {
		return nil, err
	}

	store := NewKnowledgeStore(newRedisClient(cfg), cfg.CacheTTL, logger.New("knowledge"))
	workers := NewWorkers(adapter)

	return NewEngine(EngineConfig{
		Planner: NewPlanner(adapter, nil),
		Coordinators: []Coordinator{
			NewTrackingCoordinator(workers, store, nil),
			NewCommunicationCoordinator(workers, store, nil),
			NewKnowledgeCoordinator(store, nil),
		},
		Evaluator: NewEvaluator(nil),
		Logger:    logger.New("engine"),
	})
}

// buildProvider constructs the completion backend selected by LLM_PROVIDER.
func buildProvider(ctx context.Context, cfg Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case ProviderGemini:
		return gemini.NewProvider(gemini.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.LLMModel,
		})
	case ProviderOpenAI:
		return openai.NewProvider(openai.Config{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.LLMModel,
		})
	case ProviderBedrock:
		return bedrock.NewProvider(ctx, bedrock.Config{
			Region: cfg.BedrockRegion,
			Model:  cfg.BedrockModel,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q (expected %s, %s or %s)",
			cfg.LLMProvider, ProviderGemini, ProviderOpenAI, ProviderBedrock)
	}
}

// newRedisClient connects to the primary knowledge cache. Connection failure
// is not fatal: the knowledge store degrades to its in-process fallback and
// keeps retrying the primary on each operation.
func newRedisClient(cfg Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unreachable at %s (%v), knowledge cache will use in-process fallback", cfg.RedisAddr, err)
	}

	return client
}
