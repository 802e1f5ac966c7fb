package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-estimator/pkg/cache"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

// Resolver produces an estimate outcome for a list of names.
// Implemented by matching.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, inputs []string, filters models.CatalogFilters) (*models.EstimateOutcome, error)
}

// EstimateService runs estimates and caches successful outcomes.
type EstimateService interface {
	// Estimate matches names against the catalog and aggregates time.
	// Returns an error wrapping apperrors.ErrInvalidInput for an empty list
	// and apperrors.ErrRetrieval when the catalog could not be queried.
	Estimate(ctx context.Context, names []string, filters models.CatalogFilters) (*models.EstimateOutcome, error)

	// InvalidateCache drops every cached outcome.
	InvalidateCache()
}

type estimateService struct {
	resolver Resolver
	cache    *cache.EstimateCache
	logger   *zap.Logger
}

// NewEstimateService creates an EstimateService. A nil cache disables caching.
func NewEstimateService(resolver Resolver, estimateCache *cache.EstimateCache, logger *zap.Logger) EstimateService {
	return &estimateService{
		resolver: resolver,
		cache:    estimateCache,
		logger:   logger.Named("estimate"),
	}
}

var _ EstimateService = (*estimateService)(nil)

func (s *estimateService) Estimate(ctx context.Context, names []string, filters models.CatalogFilters) (*models.EstimateOutcome, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: names must not be empty", apperrors.ErrInvalidInput)
	}

	if outcome, ok := s.cache.Get(names, filters); ok {
		s.logger.Debug("Estimate served from cache", zap.Int("inputs", len(names)))
		return outcome, nil
	}

	start := time.Now()
	outcome, err := s.resolver.Resolve(ctx, names, filters)
	if err != nil {
		s.logger.Error("Estimate failed",
			zap.Int("inputs", len(names)),
			zap.String("project_code", filters.ProjectCode),
			zap.String("cabinet_code", filters.CabinetCode),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Estimate completed",
		zap.Int("inputs", len(names)),
		zap.Int("found", len(outcome.Found)),
		zap.Int("not_found", len(outcome.NotFound)),
		zap.Int("total_minutes", outcome.TotalMinutes()),
		zap.Duration("elapsed", time.Since(start)))

	s.cache.Set(names, filters, outcome)
	return outcome, nil
}

func (s *estimateService) InvalidateCache() {
	s.cache.Invalidate()
	s.logger.Info("Estimate cache invalidated")
}
