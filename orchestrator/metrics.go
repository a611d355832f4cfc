// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cache operation results recorded on promCacheOps.
const (
	cacheResultHit      = "hit"
	cacheResultMiss     = "miss"
	cacheResultFallback = "fallback"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_orchestrator_requests_total",
			Help: "Total number of requests processed by the orchestration engine",
		},
		[]string{"endpoint", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scribe_orchestrator_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"endpoint"},
	)
	promLLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_orchestrator_llm_calls_total",
			Help: "Total number of LLM adapter calls",
		},
		[]string{"provider", "profile", "status"},
	)
	promCacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_orchestrator_knowledge_cache_ops_total",
			Help: "Knowledge cache operations by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promLLMCalls)
	prometheus.MustRegister(promCacheOps)
}

// recordRequest tracks one handled HTTP request.
func recordRequest(endpoint, status string, durationMS float64) {
	promRequestsTotal.WithLabelValues(endpoint, status).Inc()
	promRequestDuration.WithLabelValues(endpoint).Observe(durationMS)
}

// recordLLMCall tracks one adapter completion attempt chain.
func recordLLMCall(provider, profile string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	promLLMCalls.WithLabelValues(provider, profile, status).Inc()
}

// recordCacheOp tracks one knowledge cache lookup outcome.
func recordCacheOp(result string) {
	promCacheOps.WithLabelValues(result).Inc()
}
