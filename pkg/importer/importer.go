package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/matching"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

// Problem reasons written to the error report.
const (
	ReasonMissingRequired   = "missing_required_fields"
	ReasonInvalidTime       = "invalid_time_value"
	ReasonMissingTimeZero   = "missing_time_zero"
	ReasonDuplicateConflict = "duplicate_article_conflict"
)

// ErrStrictStop is returned when strict mode stops the import at a problem row.
var ErrStrictStop = errors.New("import stopped on problem row")

// progressEvery controls how often progress is logged.
const progressEvery = 1000

// Store is the part of the catalog repository used by the importer.
type Store interface {
	ExistingArticles(ctx context.Context) (map[string]struct{}, error)
	UpsertItems(ctx context.Context, items []models.CatalogItemInput) (int, error)
}

// Options controls validation and write behavior.
type Options struct {
	StageTimes  map[string]int // Fallback minutes per stage name
	DefaultTime int            // Fallback minutes when the stage is not in StageTimes
	Strict      bool           // Stop at the first problem row
	Incremental bool           // Skip articles already in the catalog
	BatchSize   int            // Items per upsert transaction (default: 500)
}

// Problem is a row that failed or needed attention during import.
type Problem struct {
	Row    Row
	Reason string
}

// Importer validates rows and writes them to a Store.
type Importer struct {
	store   Store
	options Options
	logger  *zap.Logger
}

// New creates an Importer.
func New(store Store, options Options, logger *zap.Logger) *Importer {
	if options.BatchSize < 1 {
		options.BatchSize = 500
	}
	return &Importer{
		store:   store,
		options: options,
		logger:  logger.Named("importer"),
	}
}

// LoadStageTimes reads a JSON object mapping stage name to minutes.
// An empty path yields an empty map.
func LoadStageTimes(path string) (map[string]int, error) {
	if path == "" {
		return map[string]int{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage times: %w", err)
	}
	var times map[string]int
	if err := json.Unmarshal(data, &times); err != nil {
		return nil, fmt.Errorf("parse stage times %s: %w", path, err)
	}
	return times, nil
}

// Import validates rows in order and upserts the accepted ones in batches.
//
// Rows missing a required field are skipped. Rows with an unparseable time,
// a zero time after fallback, or an article conflicting with an earlier row
// are reported but still written, the later row winning. In strict mode the
// first problem stops the import after flushing rows accepted before it; the
// returned result covers the rows seen so far and the error wraps
// ErrStrictStop.
func (im *Importer) Import(ctx context.Context, rows []Row) (*Result, error) {
	existing := map[string]struct{}{}
	if im.options.Incremental {
		var err error
		existing, err = im.store.ExistingArticles(ctx)
		if err != nil {
			return nil, fmt.Errorf("load existing articles: %w", err)
		}
		im.logger.Info("Incremental import", zap.Int("existing_articles", len(existing)))
	}

	result := newResult()
	defer result.finish()
	seen := make(map[string]Row)
	batch := make([]models.CatalogItemInput, 0, im.options.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		written, err := im.store.UpsertItems(ctx, batch)
		if err != nil {
			return fmt.Errorf("upsert rows: %w", err)
		}
		result.Written += written
		batch = batch[:0]
		return nil
	}

	// problem records a problem row. In strict mode it flushes accepted rows
	// and returns the stop error.
	problem := func(row Row, reason string) error {
		result.Problems = append(result.Problems, Problem{Row: row, Reason: reason})
		if !im.options.Strict {
			return nil
		}
		if err := flush(); err != nil {
			return err
		}
		return fmt.Errorf("%w: line %d: %s", ErrStrictStop, row.Number, reason)
	}

	for _, row := range rows {
		project := row.Get(FieldProject)
		cabinet := row.Get(FieldCabinet)
		article := row.Get(FieldArticle)
		name := row.Get(FieldName)
		nomType := row.Get(FieldNomenclatureType)
		stage := row.Get(FieldStage)

		if project == "" || cabinet == "" || article == "" || name == "" || nomType == "" || stage == "" {
			result.Stats.MissingRequired++
			result.Stats.Skipped++
			if err := problem(row, ReasonMissingRequired); err != nil {
				return result, err
			}
			continue
		}

		if _, ok := existing[article]; ok {
			result.Stats.Skipped++
			continue
		}

		minutes, parsed := 0, false
		if raw := row.Get(FieldStageTime); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				result.Stats.InvalidTime++
				if err := problem(row, ReasonInvalidTime); err != nil {
					return result, err
				}
			} else {
				minutes, parsed = v, true
			}
		}

		if prev, ok := seen[article]; ok {
			if prev.Get(FieldName) != name || prev.Get(FieldStage) != stage {
				result.Stats.DuplicateArticles++
				if err := problem(row, ReasonDuplicateConflict); err != nil {
					return result, err
				}
			}
		} else {
			seen[article] = row
		}

		if !parsed {
			if v, ok := im.options.StageTimes[stage]; ok {
				minutes = v
			} else {
				minutes = im.options.DefaultTime
			}
		}
		if minutes == 0 {
			result.Stats.MissingTimeZero++
			if err := problem(row, ReasonMissingTimeZero); err != nil {
				return result, err
			}
		}

		batch = append(batch, models.CatalogItemInput{
			ProjectCode:      project,
			CabinetCode:      cabinet,
			Article:          article,
			Name:             name,
			NameNorm:         matching.Normalize(name),
			NomenclatureType: nomType,
			Stage:            stage,
			TimePerUnit:      minutes,
			QuantityPerUnit:  1,
		})
		result.count(project, cabinet, nomType, stage)

		if len(batch) >= im.options.BatchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
		if result.Stats.Processed%progressEvery == 0 {
			im.logger.Info("Import progress", zap.Int("processed", result.Stats.Processed))
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	im.logger.Info("Import completed",
		zap.Int("processed", result.Stats.Processed),
		zap.Int("written", result.Written),
		zap.Int("skipped", result.Stats.Skipped),
		zap.Int("problems", len(result.Problems)))
	return result, nil
}

// topN returns the n largest counts, ties broken by name.
func topN(counts map[string]int, n int) []NamedCount {
	out := make([]NamedCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NamedCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
