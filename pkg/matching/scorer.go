package matching

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

const (
	// MaxScore is the upper bound of every similarity score.
	MaxScore = 100

	coverageThreshold   = 0.8
	coverageBonusWeight = 10
	prefixMinRunes      = 3
	prefixBonusStep     = 5
	maxPrefixBonus      = 10

	tokenScale         = 0.95
	partialScale       = 0.9
	longPartialScale   = 0.6
	partialLengthRatio = 1.5
	longLengthRatio    = 8.0
)

// Metric is a named similarity function returning a score in [0,100].
type Metric struct {
	Name string
	Fn   func(a, b string) int
}

// metrics is the closed set of similarity metrics combined by Score.
// Adding or removing a metric changes every stored expectation, so the set is
// fixed rather than configurable.
var metrics = []Metric{
	{Name: "ratio", Fn: Ratio},
	{Name: "partial_ratio", Fn: PartialRatio},
	{Name: "token_sort_ratio", Fn: TokenSortRatio},
	{Name: "token_set_ratio", Fn: TokenSetRatio},
	{Name: "weighted_ratio", Fn: WeightedRatio},
}

// Score returns the similarity of a query variant and a normalized candidate
// name: the maximum over all metrics plus coverage and prefix bonuses, capped
// at 100. Score is pure and deterministic.
func Score(query, candidate string) int {
	base := 0
	for _, m := range metrics {
		if s := m.Fn(query, candidate); s > base {
			base = s
		}
	}
	coverage, prefix := bonuses(query, candidate)
	return min(MaxScore, base+coverage+prefix)
}

// Explain returns the per-metric breakdown behind Score.
func Explain(query, candidate string) models.ScoreBreakdown {
	bd := models.ScoreBreakdown{Metrics: make([]models.MetricScore, 0, len(metrics))}
	for _, m := range metrics {
		s := m.Fn(query, candidate)
		bd.Metrics = append(bd.Metrics, models.MetricScore{Name: m.Name, Score: s})
		if s > bd.Base {
			bd.Base = s
		}
	}
	bd.CoverageBonus, bd.PrefixBonus = bonuses(query, candidate)
	bd.Total = min(MaxScore, bd.Base+bd.CoverageBonus+bd.PrefixBonus)
	return bd
}

// bonuses computes the coverage bonus (share of query tokens present in the
// candidate, when at least 80%) and the prefix bonus (5 per token pair where
// one token of at least 3 runes prefixes the other, capped at 10).
func bonuses(query, candidate string) (coverage, prefix int) {
	qSet := tokenSet(query)
	cSet := tokenSet(candidate)
	if len(qSet) == 0 || len(cSet) == 0 {
		return 0, 0
	}

	covered := 0
	for t := range qSet {
		if _, ok := cSet[t]; ok {
			covered++
		}
	}
	ratio := float64(covered) / float64(len(qSet))
	if ratio >= coverageThreshold {
		coverage = int(ratio * coverageBonusWeight)
	}

	for q := range qSet {
		qLen := utf8.RuneCountInString(q)
		for c := range cSet {
			switch {
			case qLen >= prefixMinRunes && strings.HasPrefix(c, q):
				prefix += prefixBonusStep
			case utf8.RuneCountInString(c) >= prefixMinRunes && strings.HasPrefix(q, c):
				prefix += prefixBonusStep
			}
		}
	}

	return coverage, min(prefix, maxPrefixBonus)
}

// Ratio is the edit-distance similarity of two whole strings:
// 100 * (1 - levenshtein(a, b) / max(len(a), len(b))), measured in runes.
// Empty input scores 0.
func Ratio(a, b string) int {
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if a == b {
		return MaxScore
	}

	longest := max(la, lb)
	dist := levenshtein.ComputeDistance(a, b)
	return percent(float64(longest-dist) / float64(longest))
}

// PartialRatio is the best Ratio of the shorter string against every window
// of the same length in the longer string. A query fully contained in a
// longer candidate scores 100.
func PartialRatio(a, b string) int {
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	if len(shorter) == len(longer) {
		return Ratio(a, b)
	}

	needle := string(shorter)
	if strings.Contains(string(longer), needle) {
		return MaxScore
	}

	best := 0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		if s := Ratio(needle, string(longer[i:i+len(shorter)])); s > best {
			best = s
		}
	}
	return best
}

// TokenSortRatio compares the strings after sorting their tokens, so word
// order does not matter.
func TokenSortRatio(a, b string) int {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares token sets: the common tokens against each side's
// common+remaining tokens. Repeated and extra tokens do not lower the score;
// when one side's tokens are a subset of the other's the score is 100.
func TokenSetRatio(a, b string) int {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for t := range setA {
		if _, ok := setB[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	if len(common) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return MaxScore
	}

	base := strings.Join(common, " ")
	withA := joinNonEmpty(base, strings.Join(onlyA, " "))
	withB := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := Ratio(withA, withB)
	if base != "" {
		best = max(best, Ratio(base, withA), Ratio(base, withB))
	}
	return best
}

// WeightedRatio picks the most confident metric for the length relation of
// the two strings. Similar lengths favour token metrics; very different
// lengths favour the partial metric, discounted as the gap grows.
func WeightedRatio(a, b string) int {
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	best := float64(Ratio(a, b))
	lengthRatio := float64(max(la, lb)) / float64(min(la, lb))

	if lengthRatio < partialLengthRatio {
		best = math.Max(best, float64(TokenSortRatio(a, b))*tokenScale)
		best = math.Max(best, float64(TokenSetRatio(a, b))*tokenScale)
		return int(math.Round(best))
	}

	scale := partialScale
	if lengthRatio >= longLengthRatio {
		scale = longPartialScale
	}
	best = math.Max(best, float64(PartialRatio(a, b))*scale)
	best = math.Max(best, float64(TokenSetRatio(a, b))*tokenScale*scale)
	return int(math.Round(best))
}

func sortedTokens(s string) string {
	toks := tokens(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func percent(f float64) int {
	p := int(math.Round(f * MaxScore))
	return max(0, min(MaxScore, p))
}
