package importer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

const topLimit = 10

// NamedCount is one entry of a top-N list.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes an import run.
type Stats struct {
	Processed         int          `json:"processed"`
	Skipped           int          `json:"skipped"`
	MissingTimeZero   int          `json:"missing_time_zero"`
	InvalidTime       int          `json:"invalid_time"`
	MissingRequired   int          `json:"missing_required"`
	DuplicateArticles int          `json:"duplicate_articles"`
	ProjectsCount     int          `json:"projects_count"`
	CabinetsCount     int          `json:"cabinets_count"`
	TypesCount        int          `json:"types_count"`
	StagesCount       int          `json:"stages_count"`
	TopProjects       []NamedCount `json:"top_projects"`
	TopCabinets       []NamedCount `json:"top_cabinets"`
	TopTypes          []NamedCount `json:"top_types"`
	TopStages         []NamedCount `json:"top_stages"`
}

// Result is the outcome of Importer.Import.
type Result struct {
	Stats    Stats
	Written  int // Rows reported written by the store
	Problems []Problem

	projects map[string]int
	cabinets map[string]int
	types    map[string]int
	stages   map[string]int
}

func newResult() *Result {
	return &Result{
		projects: make(map[string]int),
		cabinets: make(map[string]int),
		types:    make(map[string]int),
		stages:   make(map[string]int),
	}
}

func (r *Result) count(project, cabinet, nomType, stage string) {
	r.Stats.Processed++
	r.projects[project]++
	r.cabinets[cabinet]++
	r.types[nomType]++
	r.stages[stage]++
}

func (r *Result) finish() {
	r.Stats.ProjectsCount = len(r.projects)
	r.Stats.CabinetsCount = len(r.cabinets)
	r.Stats.TypesCount = len(r.types)
	r.Stats.StagesCount = len(r.stages)
	r.Stats.TopProjects = topN(r.projects, topLimit)
	r.Stats.TopCabinets = topN(r.cabinets, topLimit)
	r.Stats.TopTypes = topN(r.types, topLimit)
	r.Stats.TopStages = topN(r.stages, topLimit)
}

// WriteStats writes the stats as indented JSON.
func (r *Result) WriteStats(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.Stats); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}

// WriteErrorReport writes one semicolon-delimited line per problem with
// row_number, reason and every source column, columns sorted by name.
func (r *Result) WriteErrorReport(w io.Writer) error {
	columnSet := map[string]struct{}{}
	for _, p := range r.Problems {
		for k := range p.Row.Fields {
			columnSet[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(columnSet))
	for k := range columnSet {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := append([]string{"row_number", "reason"}, columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write error report: %w", err)
	}
	for _, p := range r.Problems {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(p.Row.Number), p.Reason)
		for _, col := range columns {
			record = append(record, p.Row.Fields[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write error report: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
