package handlers

import (
	"context"
	"sync"

	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

type fakeEstimateService struct {
	mu          sync.Mutex
	outcome     *models.EstimateOutcome
	err         error
	calls       int
	invalidated int
	lastNames   []string
	lastFilters models.CatalogFilters
}

func (f *fakeEstimateService) Estimate(_ context.Context, names []string, filters models.CatalogFilters) (*models.EstimateOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastNames = names
	f.lastFilters = filters
	return f.outcome, f.err
}

func (f *fakeEstimateService) InvalidateCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

type fakeReportService struct {
	enabled bool
	report  string
	err     error
	calls   int
}

func (f *fakeReportService) Enabled() bool { return f.enabled }

func (f *fakeReportService) GenerateReport(context.Context, *models.EstimateOutcome) (string, error) {
	f.calls++
	return f.report, f.err
}

func (f *fakeReportService) ChatReply(context.Context, string, *models.EstimateOutcome) (string, error) {
	return f.report, f.err
}

func (f *fakeReportService) ChatOnlyReply(context.Context, string, []models.ChatMessage) (string, error) {
	return f.report, f.err
}

type fakeChatService struct {
	resp    *models.ChatResponse
	err     error
	lastReq models.ChatRequest
	calls   int
}

func (f *fakeChatService) Chat(_ context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

func cabinetOutcome() *models.EstimateOutcome {
	return &models.EstimateOutcome{
		Found: []models.MatchResult{{
			UserInput:       "щиток",
			MatchedName:     "Щит управления",
			MatchScore:      88,
			MatchKind:       models.MatchKindFuzzy,
			Article:         "SH-1",
			Cabinet:         "ШУ-1",
			Project:         "PRJ",
			QuantityPerUnit: 1,
			TimePerUnit:     90,
		}},
		NotFound:       []string{"неизвестная деталь"},
		TotalByCabinet: map[string]int{"ШУ-1": 90},
		TotalByProject: map[string]int{"PRJ": 90},
		Trace: []models.MatchTrace{
			{Input: "щиток", Normalized: "щиток", FuzzyCandidates: 3, Accepted: true, Kind: models.MatchKindFuzzy, Article: "SH-1", Score: 88, Variant: "щит"},
			{Input: "неизвестная деталь", Normalized: "неизвестная деталь"},
		},
	}
}
