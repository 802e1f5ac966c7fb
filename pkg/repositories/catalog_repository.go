package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/kljensen/snowball"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/database"
	"github.com/ekaya-inc/ekaya-estimator/pkg/matching"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
	"github.com/ekaya-inc/ekaya-estimator/pkg/retry"
)

// CatalogRepository provides read access for matching and write access for
// catalog import.
type CatalogRepository interface {
	matching.CatalogRetriever

	// ExistingArticles returns every article currently stored.
	ExistingArticles(ctx context.Context) (map[string]struct{}, error)

	// UpsertItems inserts or updates items by article in one transaction,
	// creating projects, cabinets, stages and nomenclature types as needed.
	UpsertItems(ctx context.Context, items []models.CatalogItemInput) (int, error)
}

// CatalogRepositoryConfig controls candidate retrieval.
type CatalogRepositoryConfig struct {
	// UseTrigram selects pg_trgm similarity retrieval. When false, candidates
	// are found by token substring match.
	UseTrigram bool
	Retry      *retry.Config
}

type catalogRepository struct {
	db     *database.DB
	config CatalogRepositoryConfig
	logger *zap.Logger
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *database.DB, config CatalogRepositoryConfig, logger *zap.Logger) CatalogRepository {
	if config.Retry == nil {
		config.Retry = retry.DefaultConfig()
	}
	return &catalogRepository{
		db:     db,
		config: config,
		logger: logger.Named("catalog-repository"),
	}
}

var _ CatalogRepository = (*catalogRepository)(nil)

// ============================================================================
// Retrieval
// ============================================================================

const catalogSelect = `
	SELECT i.id,
	       i.name,
	       COALESCE(i.name_norm, LOWER(i.name)) AS name_norm,
	       i.article,
	       c.cabinet_code,
	       p.project_code,
	       COALESCE(nt.type_name, ''),
	       COALESCE(s.stage_name, ''),
	       i.assembly_time_minutes,
	       i.quantity_per_unit
	FROM items i
	JOIN cabinets c ON c.id = i.cabinet_id
	JOIN projects p ON p.id = c.project_id
	LEFT JOIN nomenclature_types nt ON nt.id = i.nomenclature_type_id
	LEFT JOIN stages s ON s.id = nt.stage_id`

const nameNormExpr = "COALESCE(i.name_norm, LOWER(i.name))"

func (r *catalogRepository) ExactLookup(ctx context.Context, names []string, filters models.CatalogFilters) ([]models.CatalogRecord, error) {
	if len(names) == 0 {
		return []models.CatalogRecord{}, nil
	}

	args := []any{names}
	where, args := filterClause(filters, args)
	query := catalogSelect + `
	WHERE ` + nameNormExpr + ` = ANY($1)` + where + `
	ORDER BY i.id`

	records, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up exact matches: %w", err)
	}
	return records, nil
}

func (r *catalogRepository) FuzzyLookup(ctx context.Context, query string, limit int, filters models.CatalogFilters) ([]models.CatalogRecord, error) {
	if query == "" || limit < 1 {
		return []models.CatalogRecord{}, nil
	}

	if r.config.UseTrigram {
		records, err := r.trigramCandidates(ctx, query, limit, filters)
		if err != nil {
			return nil, fmt.Errorf("failed to look up trigram candidates: %w", err)
		}
		if len(records) > 0 {
			return records, nil
		}
		r.logger.Debug("No trigram candidates, falling back to token search", zap.String("query", query))
	}

	records, err := r.tokenCandidates(ctx, query, limit, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token candidates: %w", err)
	}
	return records, nil
}

func (r *catalogRepository) trigramCandidates(ctx context.Context, query string, limit int, filters models.CatalogFilters) ([]models.CatalogRecord, error) {
	args := []any{query}
	where, args := filterClause(filters, args)
	args = append(args, limit)

	sql := catalogSelect + `
	WHERE ` + nameNormExpr + ` % $1` + where + `
	ORDER BY similarity(` + nameNormExpr + `, $1) DESC, i.id
	LIMIT $` + fmt.Sprint(len(args))

	return r.query(ctx, sql, args...)
}

func (r *catalogRepository) tokenCandidates(ctx context.Context, query string, limit int, filters models.CatalogFilters) ([]models.CatalogRecord, error) {
	patterns := tokenPatterns(query)
	if len(patterns) == 0 {
		return []models.CatalogRecord{}, nil
	}

	args := []any{patterns}
	where, args := filterClause(filters, args)
	args = append(args, limit)

	sql := catalogSelect + `
	WHERE ` + nameNormExpr + ` ILIKE ANY($1)` + where + `
	ORDER BY i.id
	LIMIT $` + fmt.Sprint(len(args))

	return r.query(ctx, sql, args...)
}

// minStemRunes keeps very short stems from matching half the catalog.
const minStemRunes = 3

// tokenPatterns builds ILIKE patterns for every token of a normalized query.
// Russian word forms also contribute their stem, so "кабеля" still finds
// "кабель".
func tokenPatterns(query string) []string {
	tokens := strings.Fields(query)
	patterns := make([]string, 0, len(tokens)*2)
	for _, tok := range tokens {
		patterns = append(patterns, "%"+escapeLike(tok)+"%")
		if stem := russianStem(tok); stem != tok && utf8.RuneCountInString(stem) >= minStemRunes {
			patterns = append(patterns, "%"+escapeLike(stem)+"%")
		}
	}
	return patterns
}

func russianStem(token string) string {
	stem, err := snowball.Stem(token, "russian", true)
	if err != nil {
		return token
	}
	return stem
}

// query runs a catalog select, retrying transient failures.
func (r *catalogRepository) query(ctx context.Context, sql string, args ...any) ([]models.CatalogRecord, error) {
	return retry.DoIfRetryableWithResult(ctx, r.config.Retry, func() ([]models.CatalogRecord, error) {
		rows, err := r.db.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		records := []models.CatalogRecord{}
		for rows.Next() {
			rec, err := scanCatalogRecord(rows)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return records, nil
	})
}

func scanCatalogRecord(row pgx.Row) (models.CatalogRecord, error) {
	var rec models.CatalogRecord
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.NameNorm,
		&rec.Article,
		&rec.CabinetCode,
		&rec.ProjectCode,
		&rec.NomenclatureType,
		&rec.Stage,
		&rec.TimePerUnit,
		&rec.QuantityPerUnit,
	)
	if err != nil {
		return models.CatalogRecord{}, fmt.Errorf("failed to scan catalog record: %w", err)
	}
	return rec, nil
}

// filterClause appends project and cabinet conditions, numbering parameters
// after the ones already in args.
func filterClause(filters models.CatalogFilters, args []any) (string, []any) {
	var b strings.Builder
	if filters.ProjectCode != "" {
		args = append(args, filters.ProjectCode)
		fmt.Fprintf(&b, " AND p.project_code = $%d", len(args))
	}
	if filters.CabinetCode != "" {
		args = append(args, filters.CabinetCode)
		fmt.Fprintf(&b, " AND c.cabinet_code = $%d", len(args))
	}
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ============================================================================
// Import
// ============================================================================

func (r *catalogRepository) ExistingArticles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, `SELECT article FROM items`)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := make(map[string]struct{})
	for rows.Next() {
		var article string
		if err := rows.Scan(&article); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles[article] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}
	return articles, nil
}

func (r *catalogRepository) UpsertItems(ctx context.Context, items []models.CatalogItemInput) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Warn("Failed to roll back import transaction", zap.Error(err))
		}
	}()

	ids := newImportIDs(tx)
	for _, item := range items {
		if err := ids.upsertItem(ctx, item); err != nil {
			return 0, fmt.Errorf("failed to upsert article %q: %w", item.Article, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit import transaction: %w", err)
	}
	return len(items), nil
}

// importIDs resolves and caches reference ids within one import transaction.
type importIDs struct {
	tx       pgx.Tx
	projects map[string]int64
	cabinets map[cabinetKey]int64
	stages   map[string]int64
	types    map[string]int64
}

type cabinetKey struct {
	projectID int64
	code      string
}

func newImportIDs(tx pgx.Tx) *importIDs {
	return &importIDs{
		tx:       tx,
		projects: make(map[string]int64),
		cabinets: make(map[cabinetKey]int64),
		stages:   make(map[string]int64),
		types:    make(map[string]int64),
	}
}

func (ids *importIDs) upsertItem(ctx context.Context, item models.CatalogItemInput) error {
	projectID, err := ids.project(ctx, item.ProjectCode)
	if err != nil {
		return err
	}
	cabinetID, err := ids.cabinet(ctx, projectID, item.CabinetCode)
	if err != nil {
		return err
	}
	stageID, err := ids.stage(ctx, item.Stage)
	if err != nil {
		return err
	}
	typeID, err := ids.nomenclatureType(ctx, item.NomenclatureType, stageID)
	if err != nil {
		return err
	}

	qty := item.QuantityPerUnit
	if qty < 1 {
		qty = 1
	}

	_, err = ids.tx.Exec(ctx, `
		INSERT INTO items (cabinet_id, nomenclature_type_id, article, name, name_norm,
		                   assembly_time_minutes, quantity_per_unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (article) DO UPDATE SET
			cabinet_id = EXCLUDED.cabinet_id,
			nomenclature_type_id = EXCLUDED.nomenclature_type_id,
			name = EXCLUDED.name,
			name_norm = EXCLUDED.name_norm,
			assembly_time_minutes = EXCLUDED.assembly_time_minutes,
			quantity_per_unit = EXCLUDED.quantity_per_unit,
			updated_at = now()`,
		cabinetID, typeID, item.Article, item.Name, item.NameNorm, item.TimePerUnit, qty)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

func (ids *importIDs) project(ctx context.Context, code string) (int64, error) {
	if id, ok := ids.projects[code]; ok {
		return id, nil
	}
	var id int64
	err := ids.tx.QueryRow(ctx, `
		INSERT INTO projects (project_code) VALUES ($1)
		ON CONFLICT (project_code) DO UPDATE SET project_code = EXCLUDED.project_code
		RETURNING id`, code).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert project: %w", err)
	}
	ids.projects[code] = id
	return id, nil
}

func (ids *importIDs) cabinet(ctx context.Context, projectID int64, code string) (int64, error) {
	key := cabinetKey{projectID: projectID, code: code}
	if id, ok := ids.cabinets[key]; ok {
		return id, nil
	}
	var id int64
	err := ids.tx.QueryRow(ctx, `
		INSERT INTO cabinets (project_id, cabinet_code) VALUES ($1, $2)
		ON CONFLICT (project_id, cabinet_code) DO UPDATE SET cabinet_code = EXCLUDED.cabinet_code
		RETURNING id`, projectID, code).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert cabinet: %w", err)
	}
	ids.cabinets[key] = id
	return id, nil
}

func (ids *importIDs) stage(ctx context.Context, name string) (int64, error) {
	if id, ok := ids.stages[name]; ok {
		return id, nil
	}
	var id int64
	err := ids.tx.QueryRow(ctx, `
		INSERT INTO stages (stage_name) VALUES ($1)
		ON CONFLICT (stage_name) DO UPDATE SET stage_name = EXCLUDED.stage_name
		RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert stage: %w", err)
	}
	ids.stages[name] = id
	return id, nil
}

func (ids *importIDs) nomenclatureType(ctx context.Context, name string, stageID int64) (int64, error) {
	if id, ok := ids.types[name]; ok {
		return id, nil
	}
	var id int64
	err := ids.tx.QueryRow(ctx, `
		INSERT INTO nomenclature_types (type_name, stage_id) VALUES ($1, $2)
		ON CONFLICT (type_name) DO UPDATE SET stage_id = EXCLUDED.stage_id
		RETURNING id`, name, stageID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert nomenclature type: %w", err)
	}
	ids.types[name] = id
	return id, nil
}
