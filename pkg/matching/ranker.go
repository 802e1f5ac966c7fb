package matching

import (
	"sort"

	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

// ScoredCandidate is a catalog record with its best score over all query
// variants and the variant that produced it.
type ScoredCandidate struct {
	Record  models.CatalogRecord
	Score   int
	Variant string
}

// Explain returns the score breakdown of the winning variant against the
// candidate's name.
func (c ScoredCandidate) Explain() models.ScoreBreakdown {
	return Explain(c.Variant, candidateName(c.Record))
}

// candidateName is the normalized name a record is scored by.
func candidateName(rec models.CatalogRecord) string {
	if rec.NameNorm != "" {
		return rec.NameNorm
	}
	return Normalize(rec.Name)
}

// Ranker scores candidate records against a query and its synonym variants.
type Ranker struct {
	expander *SynonymExpander
}

// NewRanker creates a ranker. A nil expander disables synonym variants.
func NewRanker(expander *SynonymExpander) *Ranker {
	return &Ranker{expander: expander}
}

// Rank scores every candidate against every variant of query, keeping the
// best score per candidate. Candidates scoring below minScore are dropped.
// The rest are ordered by score descending with ties kept in input order, and
// truncated to maxResults when maxResults is positive.
func (r *Ranker) Rank(query string, candidates []models.CatalogRecord, minScore, maxResults int) []ScoredCandidate {
	if query == "" || len(candidates) == 0 {
		return []ScoredCandidate{}
	}

	variants := r.expander.Expand(query)
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, rec := range candidates {
		name := candidateName(rec)
		best := ScoredCandidate{Record: rec, Variant: variants[0], Score: -1}
		for _, v := range variants {
			if s := Score(v, name); s > best.Score {
				best.Score = s
				best.Variant = v
			}
		}
		if best.Score >= minScore {
			scored = append(scored, best)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if maxResults > 0 && len(scored) > maxResults {
		scored = scored[:maxResults]
	}
	return scored
}
