// Package importer loads catalog rows from CSV or XLSX exports, validates
// them and upserts them through the catalog repository.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Canonical column names.
const (
	FieldProject          = "project"
	FieldCabinet          = "cabinet"
	FieldArticle          = "article"
	FieldName             = "name"
	FieldNomenclatureType = "nomenclature_type"
	FieldStage            = "stage"
	FieldStageTime        = "stage_time_minutes"
)

// headerAliases maps the export's Russian headers to canonical names.
// The misspelling in the time header is what the source system writes.
var headerAliases = map[string]string{
	"Проект":                   FieldProject,
	"Шкаф":                     FieldCabinet,
	"Артикул":                  FieldArticle,
	"Наименование":             FieldName,
	"Вид номенклатуры":         FieldNomenclatureType,
	"Название этапа":           FieldStage,
	"Шаблон врмени в минутах":  FieldStageTime,
	"Шаблон времени в минутах": FieldStageTime,
}

const bom = "\ufeff"

// Row is one data row keyed by canonical column name.
// Number is the 1-based line in the source, counting the header as line 1.
type Row struct {
	Number int
	Fields map[string]string
}

// Get returns the trimmed value of a column, or "" if absent.
func (r Row) Get(field string) string {
	return r.Fields[field]
}

// CanonicalHeader maps a raw header cell to its canonical column name.
// Unknown headers are kept as-is after trimming.
func CanonicalHeader(raw string) string {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), bom))
	if canonical, ok := headerAliases[h]; ok {
		return canonical
	}
	return h
}

// ReadFile reads rows from path, choosing the format by extension.
func ReadFile(path string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, "")
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	}
}

// ReadCSV reads a semicolon-delimited export. A leading byte order mark is
// tolerated and blank lines are skipped.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := canonicalColumns(header)

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if row, ok := buildRow(line, columns, record); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ReadXLSX reads the named sheet of a workbook, or the first sheet when
// sheet is empty. The first row is the header.
func ReadXLSX(path, sheet string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	columns := canonicalColumns(records[0])
	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		if row, ok := buildRow(i+2, columns, record); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func canonicalColumns(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = CanonicalHeader(h)
	}
	return columns
}

// buildRow maps record cells onto columns. Rows whose cells are all blank
// are dropped.
func buildRow(number int, columns, record []string) (Row, bool) {
	fields := make(map[string]string, len(columns))
	blank := true
	for i, col := range columns {
		if col == "" {
			continue
		}
		var v string
		if i < len(record) {
			v = strings.TrimSpace(record[i])
		}
		if v != "" {
			blank = false
		}
		fields[col] = v
	}
	return Row{Number: number, Fields: fields}, !blank
}
