// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"axonflow/scribe/shared/logger"
)

// DefaultCacheTTL bounds how long a knowledge payload is served from
// cache before it is recomputed.
const DefaultCacheTTL = 60 * time.Second

const (
	knowledgeKeyPrefix = "knowledge"
	contextDigestLen   = 16
)

// KnowledgeStore is the read-through cache in front of the project
// knowledge base. Redis is the primary store; when it is unreachable the
// store degrades to an in-process map seeded by the same write-back
// path. Reads and fallback writes are safe for concurrent requests.
type KnowledgeStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger

	mu       sync.RWMutex
	fallback map[string]fallbackEntry

	degraded sync.Once
}

type fallbackEntry struct {
	payload   map[string]any
	expiresAt time.Time
}

// NewKnowledgeStore builds a store around client. A nil client skips the
// primary tier entirely and serves from the in-process map.
func NewKnowledgeStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *KnowledgeStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.New("knowledge-store")
	}
	return &KnowledgeStore{
		client:   client,
		ttl:      ttl,
		log:      log,
		fallback: make(map[string]fallbackEntry),
	}
}

// CacheKey derives the cache key for one (project, context) pair. The
// context is digested so keys stay bounded regardless of message size.
func CacheKey(projectID, contextText string) string {
	sum := sha256.Sum256([]byte(contextText))
	digest := hex.EncodeToString(sum[:])[:contextDigestLen]
	return fmt.Sprintf("%s:%s:%s", knowledgeKeyPrefix, projectID, digest)
}

// GetOrFetch returns the knowledge payload for projectID, serving from
// cache when a fresh entry exists. The bool reports whether the payload
// came from cache. Cache failures never surface to the caller; the worst
// case is a recompute.
func (s *KnowledgeStore) GetOrFetch(ctx context.Context, projectID, contextText string) (map[string]any, bool, error) {
	key := CacheKey(projectID, contextText)

	if payload, ok := s.lookup(ctx, key); ok {
		return payload, true, nil
	}

	recordCacheOp(cacheResultMiss)
	payload := FetchProjectKnowledge(projectID)
	s.store(ctx, key, payload)
	return payload, false, nil
}

// lookup consults the primary store, then the fallback map when the
// primary is unreachable. A primary miss does not consult the fallback;
// the tiers hold the same data and the miss path repopulates both.
func (s *KnowledgeStore) lookup(ctx context.Context, key string) (map[string]any, bool) {
	if s.client != nil {
		raw, err := s.client.Get(ctx, key).Result()
		switch {
		case err == nil:
			var payload map[string]any
			if jsonErr := json.Unmarshal([]byte(raw), &payload); jsonErr == nil {
				recordCacheOp(cacheResultHit)
				return payload, true
			}
			// Corrupt entry: treat as a miss so the write-back repairs it.
			return nil, false
		case errors.Is(err, redis.Nil):
			return nil, false
		default:
			s.degradeOnce(err)
		}
	}

	s.mu.RLock()
	entry, ok := s.fallback[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	recordCacheOp(cacheResultFallback)
	return entry.payload, true
}

// store writes the payload back to the serving tier. Write-backs are
// fire-and-forget: a primary failure downgrades to the fallback map and
// never fails the read path.
func (s *KnowledgeStore) store(ctx context.Context, key string, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("", "knowledge cache write-back skipped", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return
	}

	if s.client != nil {
		if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err == nil {
			return
		} else {
			s.degradeOnce(err)
		}
	}

	s.mu.Lock()
	s.fallback[key] = fallbackEntry{payload: payload, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
}

// degradeOnce records the primary-store failure a single time per
// process. Subsequent calls keep probing Redis so the store recovers on
// its own when the connection comes back.
func (s *KnowledgeStore) degradeOnce(err error) {
	s.degraded.Do(func() {
		s.log.Warn("", "knowledge cache degraded to in-process fallback", map[string]interface{}{
			"error": err.Error(),
		})
	})
}

// mockKnowledgeBase is the bundled project dataset served while the real
// knowledge service integration is out of scope.
var mockKnowledgeBase = map[string]map[string]any{
	"PRJ-ALPHA": {
		"project_name":     "Project Alpha - Real-time Customer Platform",
		"team_members":     []any{"Sarah Chen (Product Manager)", "John Doe (Lead Engineer)", "Alice Smith (QA)"},
		"budget":           150000,
		"timeline":         "Q1-Q2 2025",
		"current_features": []any{"user_authentication", "dashboard", "analytics_reporting"},
		"tech_stack":       []any{"Python", "React", "PostgreSQL", "Redis"},
		"recent_updates":   "Customer demo scheduled for Q4 2024. Positive feedback expected.",
		"constraints":      "Real-time features require WebSocket infrastructure and Redis caching.",
		"precedents":       "Similar feature (push_notifications) added in PRJ-BETA with 18% cost increase and 6-week timeline.",
		"stakeholders":     []any{"Executive Team", "Engineering Team", "Customer Success"},
		"risk_threshold":   "HIGH",
		"approval_authority": "VP Product & Finance",
	},
	"PRJ-BETA": {
		"project_name":     "Project Beta - Enterprise Analytics",
		"team_members":     []any{"Tom Wilson", "Emma Davis"},
		"budget":           200000,
		"timeline":         "Q2-Q3 2025",
		"current_features": []any{"data_ingestion", "reporting", "notifications"},
		"tech_stack":       []any{"Java", "Kafka", "Elasticsearch"},
		"recent_updates":   "Phase 2 in progress.",
		"constraints":      "Latency SLA: <100ms for queries",
		"precedents":       nil,
		"stakeholders":     []any{"CTO", "Finance"},
		"risk_threshold":   "MEDIUM",
		"approval_authority": "CTO",
	},
}

// FetchProjectKnowledge returns the knowledge-base payload for
// projectID. Unknown projects get an error payload naming the known ids;
// the lookup itself still succeeds.
func FetchProjectKnowledge(projectID string) map[string]any {
	if payload, ok := mockKnowledgeBase[projectID]; ok {
		return clonePayload(payload)
	}
	return map[string]any{
		"error":              fmt.Sprintf("Project %s not found", projectID),
		"available_projects": knownProjectIDs(),
	}
}

func knownProjectIDs() []any {
	ids := make([]string, 0, len(mockKnowledgeBase))
	for id := range mockKnowledgeBase {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// clonePayload shields the shared fixture map from caller mutation. One
// level is enough; nested values are never modified downstream.
func clonePayload(payload map[string]any) map[string]any {
	clone := make(map[string]any, len(payload))
	for k, v := range payload {
		clone[k] = v
	}
	return clone
}
