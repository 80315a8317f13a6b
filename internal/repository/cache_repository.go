package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/policyforge/policyforge-api/internal/models"
)

const summaryKeyPrefix = "policyforge:approval_summary:"

// SummaryCache keeps approval summaries in Redis so dashboard polling does
// not hit the aggregate query on every request. A nil client disables it.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache creates the cache wrapper.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

// Get returns the cached summary for the scope, or nil on miss.
func (c *SummaryCache) Get(ctx context.Context, scope models.SummaryScope) (*models.ApprovalSummary, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, summaryKeyPrefix+string(scope)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary cache: %w", err)
	}
	var summary models.ApprovalSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode summary cache: %w", err)
	}
	return &summary, nil
}

// Set stores the summary under its scope key.
func (c *SummaryCache) Set(ctx context.Context, summary *models.ApprovalSummary) error {
	if c == nil || c.client == nil || summary == nil {
		return nil
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary cache: %w", err)
	}
	if err := c.client.Set(ctx, summaryKeyPrefix+string(summary.Scope), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set summary cache: %w", err)
	}
	return nil
}

// Invalidate drops both scope entries after a workflow mutation.
func (c *SummaryCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	keys := []string{
		summaryKeyPrefix + string(models.SummaryScopeAny),
		summaryKeyPrefix + string(models.SummaryScopeLatest),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate summary cache: %w", err)
	}
	return nil
}
