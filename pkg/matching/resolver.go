package matching

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
	"github.com/ekaya-inc/ekaya-estimator/pkg/workerpool"
)

// CatalogRetriever supplies candidate catalog records.
type CatalogRetriever interface {
	// ExactLookup returns every record whose normalized name equals one of
	// names, in a single round trip.
	ExactLookup(ctx context.Context, names []string, filters models.CatalogFilters) ([]models.CatalogRecord, error)

	// FuzzyLookup returns at most limit records plausibly similar to query,
	// most similar first.
	FuzzyLookup(ctx context.Context, query string, limit int, filters models.CatalogFilters) ([]models.CatalogRecord, error)
}

// ResolverConfig holds the matching thresholds.
type ResolverConfig struct {
	MinScore           int // Fuzzy acceptance threshold, inclusive (default: 70)
	MaxCandidates      int // Fuzzy retrieval limit per input (default: 30)
	MaxResultsPerInput int // Ranked results considered per input, <= 0 for all (default: 1)
	Parallelism        int // Concurrent fuzzy lookups per call (default: 4)
}

// DefaultResolverConfig returns the default thresholds.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		MinScore:           70,
		MaxCandidates:      30,
		MaxResultsPerInput: 1,
		Parallelism:        4,
	}
}

// Resolver turns a list of free-text names into matched catalog records.
//
// Exact matches on the normalized name take precedence over fuzzy matches.
// Within one call an article is used at most once; inputs claim articles in
// input order. A Resolver holds no per-call state and is safe for concurrent
// use.
type Resolver struct {
	retriever CatalogRetriever
	ranker    *Ranker
	config    ResolverConfig
	pool      *workerpool.Pool
	logger    *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(retriever CatalogRetriever, ranker *Ranker, config ResolverConfig, logger *zap.Logger) *Resolver {
	if config.MaxCandidates < 1 {
		config.MaxCandidates = DefaultResolverConfig().MaxCandidates
	}
	if ranker == nil {
		ranker = NewRanker(nil)
	}
	r := &Resolver{
		retriever: retriever,
		ranker:    ranker,
		config:    config,
		pool:      workerpool.New(workerpool.Config{MaxConcurrent: config.Parallelism}, logger),
		logger:    logger.Named("resolver"),
	}
	r.logger.Debug("Resolver configured",
		zap.Int("min_score", config.MinScore),
		zap.Int("max_candidates", config.MaxCandidates),
		zap.Int("max_results_per_input", config.MaxResultsPerInput),
		zap.Int("parallelism", r.pool.MaxConcurrent()))
	return r
}

// Resolve matches every input, deduplicates articles across inputs and
// aggregates time per cabinet and project.
//
// Any retrieval failure fails the whole call with an error wrapping
// apperrors.ErrRetrieval; no partial outcome is returned.
func (r *Resolver) Resolve(ctx context.Context, inputs []string, filters models.CatalogFilters) (*models.EstimateOutcome, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no names to estimate", apperrors.ErrInvalidInput)
	}

	normalized := make([]string, len(inputs))
	for i, input := range inputs {
		normalized[i] = Normalize(input)
	}

	exact, err := r.lookupExact(ctx, normalized, filters)
	if err != nil {
		return nil, err
	}

	fuzzy, err := r.lookupFuzzy(ctx, normalized, exact, filters)
	if err != nil {
		return nil, err
	}

	outcome := &models.EstimateOutcome{
		Found:    []models.MatchResult{},
		NotFound: []string{},
		Trace:    make([]models.MatchTrace, 0, len(inputs)),
	}
	claims := newClaimSet()
	ranked := make(map[string][]ScoredCandidate)

	for i, input := range inputs {
		norm := normalized[i]
		trace := models.MatchTrace{Input: input, Normalized: norm}

		switch {
		case norm == "":
			// Nothing to match.
		case len(exact[norm]) > 0:
			rows := exact[norm]
			trace.ExactCandidates = len(rows)
			for _, rec := range rows {
				if !claims.TryClaim(rec.Article) {
					continue
				}
				outcome.Found = append(outcome.Found,
					models.NewMatchResult(input, rec, models.ExactMatchScore, models.MatchKindExact))
				trace.Accept(rec.Article, models.ExactMatchScore, models.MatchKindExact, norm)
				break
			}
		default:
			candidates, ok := ranked[norm]
			if !ok {
				candidates = r.ranker.Rank(norm, fuzzy[norm], r.config.MinScore, r.config.MaxResultsPerInput)
				ranked[norm] = candidates
			}
			trace.FuzzyCandidates = len(fuzzy[norm])
			for _, sc := range candidates {
				if !claims.TryClaim(sc.Record.Article) {
					continue
				}
				outcome.Found = append(outcome.Found,
					models.NewMatchResult(input, sc.Record, sc.Score, models.MatchKindFuzzy))
				trace.Accept(sc.Record.Article, sc.Score, models.MatchKindFuzzy, sc.Variant)
				breakdown := sc.Explain()
				trace.Breakdown = &breakdown
				break
			}
		}

		if !trace.Accepted {
			outcome.NotFound = append(outcome.NotFound, input)
		}
		outcome.Trace = append(outcome.Trace, trace)

		r.logger.Debug("Resolved input",
			zap.String("input", input),
			zap.String("normalized", norm),
			zap.Bool("accepted", trace.Accepted),
			zap.String("kind", trace.Kind),
			zap.Int("score", trace.Score))
	}

	outcome.TotalByCabinet, outcome.TotalByProject = Aggregate(outcome.Found)
	return outcome, nil
}

// lookupExact fetches exact rows for all distinct non-empty normalized names
// in one call and groups them by normalized name, preserving retrieval order.
func (r *Resolver) lookupExact(ctx context.Context, normalized []string, filters models.CatalogFilters) (map[string][]models.CatalogRecord, error) {
	names := distinctNonEmpty(normalized, nil)
	grouped := make(map[string][]models.CatalogRecord, len(names))
	if len(names) == 0 {
		return grouped, nil
	}

	rows, err := r.retriever.ExactLookup(ctx, names, filters)
	if err != nil {
		return nil, fmt.Errorf("%w: exact lookup: %w", apperrors.ErrRetrieval, err)
	}
	for _, rec := range rows {
		grouped[rec.NameNorm] = append(grouped[rec.NameNorm], rec)
	}
	return grouped, nil
}

// lookupFuzzy fetches fuzzy candidates once per distinct normalized name that
// has no exact rows. Lookups run concurrently; the first failure cancels the
// rest.
func (r *Resolver) lookupFuzzy(
	ctx context.Context,
	normalized []string,
	exact map[string][]models.CatalogRecord,
	filters models.CatalogFilters,
) (map[string][]models.CatalogRecord, error) {
	queries := distinctNonEmpty(normalized, func(norm string) bool {
		return len(exact[norm]) == 0
	})
	result := make(map[string][]models.CatalogRecord, len(queries))
	if len(queries) == 0 {
		return result, nil
	}

	items := make([]workerpool.Item[[]models.CatalogRecord], len(queries))
	for i, query := range queries {
		items[i] = workerpool.Item[[]models.CatalogRecord]{
			ID: query,
			Execute: func(ctx context.Context) ([]models.CatalogRecord, error) {
				return r.retriever.FuzzyLookup(ctx, query, r.config.MaxCandidates, filters)
			},
		}
	}

	candidates, err := workerpool.ProcessAll(ctx, r.pool, items)
	if err != nil {
		return nil, fmt.Errorf("%w: fuzzy lookup: %w", apperrors.ErrRetrieval, err)
	}
	for i, query := range queries {
		result[query] = candidates[i]
	}
	return result, nil
}

// distinctNonEmpty returns the distinct non-empty values in first-seen order,
// keeping only those accepted by keep when keep is non-nil.
func distinctNonEmpty(values []string, keep func(string) bool) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// claimSet records the articles already used within one Resolve call.
type claimSet struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

func newClaimSet() *claimSet {
	return &claimSet{claimed: make(map[string]struct{})}
}

// TryClaim reserves article and reports whether it was still free. Records
// without an article cannot be claimed.
func (c *claimSet) TryClaim(article string) bool {
	if article == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.claimed[article]; taken {
		return false
	}
	c.claimed[article] = struct{}{}
	return true
}
