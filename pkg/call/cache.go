package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SummaryCache keeps the fully assembled artifacts of completed calls
// in Redis so dashboard reads skip the fan-out queries.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

func summaryKey(callID uuid.UUID) string {
	return fmt.Sprintf("call:summary:%s", callID)
}

func (c *SummaryCache) Set(ctx context.Context, summary models.CallSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal call summary: %w", err)
	}
	if err := c.client.Set(ctx, summaryKey(summary.Call.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache call summary: %w", err)
	}
	return nil
}

// Get returns the cached summary, or false on a miss.
func (c *SummaryCache) Get(ctx context.Context, callID uuid.UUID) (models.CallSummary, bool) {
	data, err := c.client.Get(ctx, summaryKey(callID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("call_id", callID).Warn("Call summary cache read failed")
		}
		return models.CallSummary{}, false
	}
	var summary models.CallSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return models.CallSummary{}, false
	}
	return summary, true
}

func (c *SummaryCache) Invalidate(ctx context.Context, callID uuid.UUID) {
	if err := c.client.Del(ctx, summaryKey(callID)).Err(); err != nil {
		logger.Log.WithError(err).WithField("call_id", callID).Warn("Failed to invalidate call summary")
	}
}
