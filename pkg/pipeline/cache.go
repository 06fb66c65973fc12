package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// ExtractionCache memoizes model output per transcript so identical
// audio re-runs skip the LLM entirely.
type ExtractionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewExtractionCache(client *redis.Client, ttl time.Duration) *ExtractionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ExtractionCache{client: client, ttl: ttl}
}

// TranscriptHash fingerprints the utterance texts in order.
func TranscriptHash(utterances []models.TranscriptUtterance) string {
	h := sha256.New()
	for _, u := range utterances {
		h.Write([]byte(u.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (c *ExtractionCache) Get(ctx context.Context, hash string) (Extraction, bool) {
	if c == nil || c.client == nil {
		return Extraction{}, false
	}
	raw, err := c.client.Get(ctx, cacheKey(hash)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).Warn("Failed to read extraction cache")
		}
		return Extraction{}, false
	}
	var extraction Extraction
	if err := json.Unmarshal(raw, &extraction); err != nil {
		return Extraction{}, false
	}
	return extraction, true
}

func (c *ExtractionCache) Set(ctx context.Context, hash string, extraction Extraction) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(extraction)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(hash), raw, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("Failed to write extraction cache")
	}
}

func cacheKey(hash string) string {
	return fmt.Sprintf("pipeline:extract:%s", hash)
}
