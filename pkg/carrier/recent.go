package carrier

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const recentSearchKeep = 10

// RecentSearches remembers the last few carrier queries per org so the
// search box can offer them back. Redis-backed when a client is
// provided; otherwise an in-process ring, which is enough for a single
// replica and for tests.
type RecentSearches struct {
	client *redis.Client

	mu     sync.Mutex
	memory map[uuid.UUID][]string
}

func NewRecentSearches(client *redis.Client) *RecentSearches {
	return &RecentSearches{
		client: client,
		memory: make(map[uuid.UUID][]string),
	}
}

// Record notes a query. Blank queries and immediate repeats are dropped.
func (s *RecentSearches) Record(ctx context.Context, orgID uuid.UUID, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}

	if s.client != nil {
		key := recentKey(orgID)
		pipe := s.client.TxPipeline()
		pipe.LRem(ctx, key, 0, query)
		pipe.LPush(ctx, key, query)
		pipe.LTrim(ctx, key, 0, recentSearchKeep-1)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Log.WithError(err).Warn("Failed to record recent search")
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.memory[orgID]
	kept := make([]string, 0, len(entries)+1)
	kept = append(kept, query)
	for _, e := range entries {
		if e != query {
			kept = append(kept, e)
		}
	}
	if len(kept) > recentSearchKeep {
		kept = kept[:recentSearchKeep]
	}
	s.memory[orgID] = kept
}

// List returns the org's recent queries, newest first.
func (s *RecentSearches) List(ctx context.Context, orgID uuid.UUID) []string {
	if s.client != nil {
		entries, err := s.client.LRange(ctx, recentKey(orgID), 0, recentSearchKeep-1).Result()
		if err != nil {
			if err != redis.Nil {
				logger.Log.WithError(err).Warn("Failed to list recent searches")
			}
			return nil
		}
		return entries
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.memory[orgID]
	out := make([]string, len(entries))
	copy(out, entries)
	return out
}

func recentKey(orgID uuid.UUID) string {
	return fmt.Sprintf("carrier:recent:%s", orgID)
}
