// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider selector values accepted in LLM_PROVIDER.
const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

// Config holds the service configuration, loaded once at startup.
type Config struct {
	// Host and Port form the HTTP listen address.
	Host string
	Port string

	// LLMProvider selects the completion backend: gemini, openai or bedrock.
	LLMProvider string

	// Provider credentials and model override.
	GeminiAPIKey string
	OpenAIAPIKey string
	LLMModel     string

	// Bedrock settings. Credentials come from the AWS default chain.
	BedrockRegion string
	BedrockModel  string

	// RedisAddr is the primary knowledge cache. An explicitly empty value
	// disables the primary and the store runs on its in-process fallback.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CacheTTL bounds how long fetched project knowledge stays cached.
	CacheTTL time.Duration

	// ProfilesConfig optionally points at a YAML model-profile file that
	// overlays the built-in profiles.
	ProfilesConfig string
}

// LoadConfig reads the service configuration from the environment.
func LoadConfig() Config {
	cfg := Config{
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "8080"),
		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		LLMModel:       os.Getenv("LLM_MODEL"),
		BedrockRegion:  os.Getenv("BEDROCK_REGION"),
		BedrockModel:   os.Getenv("BEDROCK_MODEL"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_SECONDS", 60)) * time.Second,
		ProfilesConfig: os.Getenv("PROFILES_CONFIG"),
	}

	// REDIS_ADDR set to the empty string is a deliberate opt-out, distinct
	// from the variable being absent.
	if addr, ok := os.LookupEnv("REDIS_ADDR"); ok {
		cfg.RedisAddr = addr
	} else {
		cfg.RedisAddr = "localhost:6379"
	}

	return cfg
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
