package services

import (
	"context"
	"sync"

	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

// mockResolver returns a fixed outcome or error and records calls.
type mockResolver struct {
	mu      sync.Mutex
	outcome *models.EstimateOutcome
	err     error
	calls   [][]string
	filters []models.CatalogFilters
}

func (m *mockResolver) Resolve(ctx context.Context, inputs []string, filters models.CatalogFilters) (*models.EstimateOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]string(nil), inputs...))
	m.filters = append(m.filters, filters)
	if m.err != nil {
		return nil, m.err
	}
	return m.outcome, nil
}

func (m *mockResolver) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockEstimateService is a configurable EstimateService.
type mockEstimateService struct {
	EstimateFunc func(ctx context.Context, names []string, filters models.CatalogFilters) (*models.EstimateOutcome, error)
	invalidated  int
}

func (m *mockEstimateService) Estimate(ctx context.Context, names []string, filters models.CatalogFilters) (*models.EstimateOutcome, error) {
	return m.EstimateFunc(ctx, names, filters)
}

func (m *mockEstimateService) InvalidateCache() {
	m.invalidated++
}

func sampleOutcome() *models.EstimateOutcome {
	return &models.EstimateOutcome{
		Found: []models.MatchResult{{
			UserInput:   "Насос А-12",
			MatchedName: "Насос А-12",
			MatchScore:  100,
			MatchKind:   models.MatchKindExact,
			Article:     "A-1",
			Cabinet:     "ШУ-1",
			Project:     "P1",
			TimePerUnit: 45,
		}},
		NotFound:       []string{"турбина"},
		TotalByCabinet: map[string]int{"ШУ-1": 45},
		TotalByProject: map[string]int{"P1": 45},
		Trace: []models.MatchTrace{
			{Input: "Насос А-12", Normalized: "насос а 12", ExactCandidates: 1, Accepted: true, Article: "A-1"},
			{Input: "турбина", Normalized: "турбина"},
		},
	}
}
