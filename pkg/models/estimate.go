package models

// Match kinds reported on MatchResult and MatchTrace.
const (
	MatchKindExact = "exact"
	MatchKindFuzzy = "fuzzy"
)

// ExactMatchScore is the score reported for exact name matches.
const ExactMatchScore = 100

// MatchResult is one accepted match, denormalized into output units.
type MatchResult struct {
	UserInput        string `json:"user_input"`
	MatchedName      string `json:"matched_name"`
	MatchScore       int    `json:"match_score"`
	MatchKind        string `json:"match_kind"`
	Article          string `json:"article"`
	Cabinet          string `json:"cabinet"`
	Project          string `json:"project"`
	NomenclatureType string `json:"nomenclature_type"`
	Stage            string `json:"stage"`
	QuantityPerUnit  int    `json:"quantity_per_unit"`
	TimePerUnit      int    `json:"time_per_unit"`
}

// NewMatchResult builds a MatchResult for the given input from a catalog record.
func NewMatchResult(userInput string, rec CatalogRecord, score int, kind string) MatchResult {
	qty := rec.QuantityPerUnit
	if qty < 1 {
		qty = 1
	}
	return MatchResult{
		UserInput:        userInput,
		MatchedName:      rec.Name,
		MatchScore:       score,
		MatchKind:        kind,
		Article:          rec.Article,
		Cabinet:          rec.CabinetCode,
		Project:          rec.ProjectCode,
		NomenclatureType: rec.NomenclatureType,
		Stage:            rec.Stage,
		QuantityPerUnit:  qty,
		TimePerUnit:      rec.TimePerUnit,
	}
}

// MatchTrace records how a single input was resolved. Used for diagnostics only.
type MatchTrace struct {
	Input           string `json:"input"`
	Normalized      string `json:"normalized"`
	ExactCandidates int    `json:"exact"`
	FuzzyCandidates int    `json:"fuzzy"`
	Accepted        bool   `json:"accepted"`
	Kind            string `json:"kind,omitempty"`
	Article         string `json:"article,omitempty"`
	Score           int    `json:"score,omitempty"`
	Variant         string `json:"variant,omitempty"` // Query variant that produced the winning score

	// Breakdown is set for fuzzy matches only.
	Breakdown *ScoreBreakdown `json:"breakdown,omitempty"`
}

// MetricScore is one metric's contribution in a ScoreBreakdown.
type MetricScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// ScoreBreakdown explains how a fuzzy score was computed.
type ScoreBreakdown struct {
	Metrics       []MetricScore `json:"metrics"`
	Base          int           `json:"base"`
	CoverageBonus int           `json:"coverage_bonus"`
	PrefixBonus   int           `json:"prefix_bonus"`
	Total         int           `json:"total"`
}

// EstimateOutcome is the result of one estimation call.
type EstimateOutcome struct {
	Found          []MatchResult  `json:"found_items"`
	NotFound       []string       `json:"not_found_items"`
	TotalByCabinet map[string]int `json:"total_time_by_cabinet"`
	TotalByProject map[string]int `json:"total_time_by_project"`
	Trace          []MatchTrace   `json:"-"`
}

// EmptyOutcome returns an outcome with no matches and non-nil collections,
// so it serializes as empty lists and objects rather than null.
func EmptyOutcome() *EstimateOutcome {
	return &EstimateOutcome{
		Found:          []MatchResult{},
		NotFound:       []string{},
		TotalByCabinet: map[string]int{},
		TotalByProject: map[string]int{},
	}
}

// TotalMinutes returns the overall estimated time across all found items.
func (o *EstimateOutcome) TotalMinutes() int {
	total := 0
	for _, m := range o.Found {
		total += m.TimePerUnit
	}
	return total
}

// Accept marks the trace as resolved to article.
func (t *MatchTrace) Accept(article string, score int, kind, variant string) {
	t.Accepted = true
	t.Article = article
	t.Score = score
	t.Kind = kind
	t.Variant = variant
}

// EstimateDebug carries diagnostics returned alongside an estimate.
type EstimateDebug struct {
	Matches []MatchTrace `json:"matches"`
}

// EstimateResponse is an outcome as returned to API clients, with the
// optional report and any warnings about degraded processing.
type EstimateResponse struct {
	Found          []MatchResult  `json:"found_items"`
	NotFound       []string       `json:"not_found_items"`
	TotalByCabinet map[string]int `json:"total_time_by_cabinet"`
	TotalByProject map[string]int `json:"total_time_by_project"`
	Report         *string        `json:"report"`
	Warnings       []string       `json:"warnings"`
	RawDebug       *EstimateDebug `json:"raw_debug"`
}

// NewEstimateResponse wraps outcome for the API. A nil outcome yields an
// empty response without diagnostics.
func NewEstimateResponse(outcome *EstimateOutcome) *EstimateResponse {
	if outcome == nil {
		empty := EmptyOutcome()
		return &EstimateResponse{
			Found:          empty.Found,
			NotFound:       empty.NotFound,
			TotalByCabinet: empty.TotalByCabinet,
			TotalByProject: empty.TotalByProject,
			Warnings:       []string{},
		}
	}
	return &EstimateResponse{
		Found:          outcome.Found,
		NotFound:       outcome.NotFound,
		TotalByCabinet: outcome.TotalByCabinet,
		TotalByProject: outcome.TotalByProject,
		Warnings:       []string{},
		RawDebug:       &EstimateDebug{Matches: outcome.Trace},
	}
}

// AddWarning appends a warning message.
func (r *EstimateResponse) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
