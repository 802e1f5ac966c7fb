// Package cache keeps recent estimate outcomes in a bounded in-process cache.
package cache

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

// EstimateCache maps an estimate request (filters and raw names in order) to
// its outcome. Entries expire after the configured TTL and the whole cache is
// cleared whenever the catalog changes. A nil or disabled cache misses on
// every lookup.
type EstimateCache struct {
	cache  *ristretto.Cache[string, *models.EstimateOutcome]
	ttl    time.Duration
	logger *zap.Logger
}

// NewEstimateCache creates a cache holding at most capacity outcomes.
// A capacity of zero returns a disabled cache.
func NewEstimateCache(capacity int, ttl time.Duration, logger *zap.Logger) (*EstimateCache, error) {
	logger = logger.Named("estimate-cache")
	if capacity <= 0 {
		logger.Warn("Estimate cache disabled by configuration")
		return &EstimateCache{logger: logger}, nil
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, *models.EstimateOutcome]{
		NumCounters: int64(capacity) * 10,
		MaxCost:     int64(capacity),
		BufferItems: 64,

		// Cost is an entry count; ristretto's per-item overhead would
		// otherwise eat most of the capacity.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create estimate cache: %w", err)
	}

	return &EstimateCache{cache: c, ttl: ttl, logger: logger}, nil
}

// Enabled reports whether outcomes are cached at all.
func (c *EstimateCache) Enabled() bool {
	return c != nil && c.cache != nil
}

// Get returns a copy of the cached outcome for the request, if any.
func (c *EstimateCache) Get(names []string, filters models.CatalogFilters) (*models.EstimateOutcome, bool) {
	if !c.Enabled() {
		return nil, false
	}
	outcome, ok := c.cache.Get(Key(names, filters))
	if !ok {
		return nil, false
	}
	return cloneOutcome(outcome), true
}

// Set stores a copy of outcome. Each entry costs 1 against the capacity.
func (c *EstimateCache) Set(names []string, filters models.CatalogFilters, outcome *models.EstimateOutcome) {
	if !c.Enabled() || outcome == nil {
		return
	}
	if !c.cache.SetWithTTL(Key(names, filters), cloneOutcome(outcome), 1, c.ttl) {
		c.logger.Debug("Estimate cache rejected entry", zap.Int("names", len(names)))
	}
}

// Invalidate drops every cached outcome.
func (c *EstimateCache) Invalidate() {
	if !c.Enabled() {
		return
	}
	c.cache.Clear()
	c.logger.Info("Estimate cache cleared")
}

// Wait blocks until pending writes are applied. Intended for tests.
func (c *EstimateCache) Wait() {
	if c.Enabled() {
		c.cache.Wait()
	}
}

// Close releases the cache's background goroutines.
func (c *EstimateCache) Close() {
	if c.Enabled() {
		c.cache.Close()
	}
}

// Key builds the cache key for a request. Name order is part of the key
// because article deduplication depends on it. Every part is length-prefixed
// so no choice of characters in names or codes can make two requests collide.
func Key(names []string, filters models.CatalogFilters) string {
	var b strings.Builder
	writeKeyPart(&b, filters.ProjectCode)
	writeKeyPart(&b, filters.CabinetCode)
	for _, name := range names {
		writeKeyPart(&b, name)
	}
	return b.String()
}

func writeKeyPart(b *strings.Builder, s string) {
	fmt.Fprintf(b, "%d:%s", len(s), s)
}

func cloneOutcome(o *models.EstimateOutcome) *models.EstimateOutcome {
	return &models.EstimateOutcome{
		Found:          append([]models.MatchResult{}, o.Found...),
		NotFound:       append([]string{}, o.NotFound...),
		TotalByCabinet: maps.Clone(o.TotalByCabinet),
		TotalByProject: maps.Clone(o.TotalByProject),
		Trace:          append([]models.MatchTrace(nil), o.Trace...),
	}
}
