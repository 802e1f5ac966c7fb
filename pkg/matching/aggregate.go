package matching

import "github.com/ekaya-inc/ekaya-estimator/pkg/models"

// Aggregate sums TimePerUnit of the found matches per cabinet and per project.
// Only keys present in found appear in the result maps.
func Aggregate(found []models.MatchResult) (byCabinet, byProject map[string]int) {
	byCabinet = make(map[string]int)
	byProject = make(map[string]int)
	for _, m := range found {
		byCabinet[m.Cabinet] += m.TimePerUnit
		byProject[m.Project] += m.TimePerUnit
	}
	return byCabinet, byProject
}
