// import-catalog loads a catalog export (CSV or XLSX) into the database.
//
// Usage: go run ./scripts/import-catalog -path catalog.csv [flags]
//
// Database connection: config.yaml when present, otherwise PG* environment
// variables.
//
// Flags:
//
//	-path            CSV (semicolon-delimited) or XLSX file to import (required)
//	-stage-times     JSON file {"stage name": minutes} used when a row has no time
//	-default-time    Minutes used when the stage is not in -stage-times (default: 0)
//	-error-report    Write problem rows to this CSV file
//	-stats-out       Write import statistics to this JSON file
//	-strict          Stop at the first problem row
//	-incremental     Only add articles that are not in the catalog yet
//	-migrate         Apply schema migrations before importing (default: true)
//	-invalidate-url  Server base URL whose estimate cache is cleared afterwards
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/config"
	"github.com/ekaya-inc/ekaya-estimator/pkg/database"
	"github.com/ekaya-inc/ekaya-estimator/pkg/importer"
	"github.com/ekaya-inc/ekaya-estimator/pkg/repositories"
)

func main() {
	path := flag.String("path", "", "CSV or XLSX file to import")
	stageTimesPath := flag.String("stage-times", "", `JSON file {"stage name": minutes}`)
	defaultTime := flag.Int("default-time", 0, "Minutes used when the stage has no time")
	errorReport := flag.String("error-report", "", "CSV file for problem rows")
	statsOut := flag.String("stats-out", "", "JSON file for import statistics")
	strict := flag.Bool("strict", false, "Stop at the first problem row")
	incremental := flag.Bool("incremental", false, "Only add new articles")
	migrate := flag.Bool("migrate", true, "Apply schema migrations before importing")
	invalidateURL := flag.String("invalidate-url", "", "Server base URL to clear the estimate cache on")
	flag.Parse()

	if *path == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -path <file> [flags]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	opts := runOptions{
		path:           *path,
		stageTimesPath: *stageTimesPath,
		errorReport:    *errorReport,
		statsOut:       *statsOut,
		migrate:        *migrate,
		invalidateURL:  *invalidateURL,
		importer: importer.Options{
			DefaultTime: *defaultTime,
			Strict:      *strict,
			Incremental: *incremental,
		},
	}
	if err := run(context.Background(), opts, logger); err != nil {
		logger.Error("Import failed", zap.Error(err))
		os.Exit(1)
	}
}

type runOptions struct {
	path           string
	stageTimesPath string
	errorReport    string
	statsOut       string
	migrate        bool
	invalidateURL  string
	importer       importer.Options
}

func run(ctx context.Context, opts runOptions, logger *zap.Logger) error {
	cfg, err := config.Load("import")
	if err != nil {
		return err
	}

	stageTimes, err := importer.LoadStageTimes(opts.stageTimesPath)
	if err != nil {
		return err
	}
	opts.importer.StageTimes = stageTimes

	rows, err := importer.ReadFile(opts.path)
	if err != nil {
		return err
	}
	logger.Info("Read catalog export", zap.String("path", opts.path), zap.Int("rows", len(rows)))

	if opts.migrate {
		if err := database.Migrate(cfg.Database.URL(), logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             cfg.Database.URL(),
		MaxConnections:  4,
		ApplicationName: "ekaya-estimator-import",
	})
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewCatalogRepository(db, repositories.CatalogRepositoryConfig{}, logger)
	result, importErr := importer.New(repo, opts.importer, logger).Import(ctx, rows)
	if result != nil {
		if err := writeOutputs(result, opts); err != nil {
			return err
		}
		printSummary(result)
	}
	if importErr != nil && !errors.Is(importErr, importer.ErrStrictStop) {
		return importErr
	}

	// Rows accepted before a strict stop are already committed.
	if result != nil && result.Written > 0 && opts.invalidateURL != "" {
		if err := invalidateCache(ctx, opts.invalidateURL); err != nil {
			logger.Warn("Failed to invalidate server estimate cache", zap.Error(err))
		} else {
			logger.Info("Server estimate cache invalidated", zap.String("url", opts.invalidateURL))
		}
	}
	return importErr
}

func writeOutputs(result *importer.Result, opts runOptions) error {
	if opts.errorReport != "" && len(result.Problems) > 0 {
		if err := writeFile(opts.errorReport, result.WriteErrorReport); err != nil {
			return err
		}
		fmt.Printf("Error report: %s\n", opts.errorReport)
	}
	if opts.statsOut != "" {
		if err := writeFile(opts.statsOut, result.WriteStats); err != nil {
			return err
		}
		fmt.Printf("Statistics: %s\n", opts.statsOut)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(result *importer.Result) {
	s := result.Stats
	fmt.Printf("Processed rows: %d (written %d)\n", s.Processed, result.Written)
	if s.Skipped > 0 || s.MissingTimeZero > 0 || s.InvalidTime > 0 || s.DuplicateArticles > 0 {
		fmt.Printf("Time problems: missing or zero=%d, invalid=%d\n", s.MissingTimeZero, s.InvalidTime)
		fmt.Printf("Other problems: skipped=%d, duplicate articles=%d\n", s.Skipped, s.DuplicateArticles)
	}
	fmt.Println("Catalog:")
	fmt.Printf("- projects: %d\n", s.ProjectsCount)
	fmt.Printf("- cabinets: %d\n", s.CabinetsCount)
	fmt.Printf("- nomenclature types: %d\n", s.TypesCount)
	fmt.Printf("- stages: %d\n", s.StagesCount)
}

func invalidateCache(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + "/v1/cache/invalidate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
