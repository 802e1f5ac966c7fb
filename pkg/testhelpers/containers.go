package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/database"
)

// PostgresImage ships pg_trgm as a bundled extension.
const PostgresImage = "postgres:16-alpine"

// CatalogDB holds a shared PostgreSQL container with the catalog schema applied.
type CatalogDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedCatalogDB     *CatalogDB
	sharedCatalogDBOnce sync.Once
	sharedCatalogDBErr  error
)

// GetCatalogDB returns a shared catalog database for integration tests.
// The container is created once and reused across all tests in the run.
// Tests must call ResetCatalog before seeding to start from empty tables.
func GetCatalogDB(t *testing.T) *CatalogDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedCatalogDBOnce.Do(func() {
		sharedCatalogDB, sharedCatalogDBErr = setupCatalogDB()
	})

	if sharedCatalogDBErr != nil {
		t.Fatalf("Failed to setup catalog database: %v", sharedCatalogDBErr)
	}

	return sharedCatalogDB
}

func setupCatalogDB() (*CatalogDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "assembly_test",
			"POSTGRES_USER":     "estimator",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The server restarts once after init scripts, so the message appears twice.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://estimator:test_password@%s:%s/assembly_test?sslmode=disable",
		host, port.Port())

	var db *database.DB
	for i := 0; i < 10; i++ {
		db, err = database.NewConnection(ctx, &database.Config{URL: connStr, MaxConnections: 5})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}

	if err := database.Migrate(connStr, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &CatalogDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// ResetCatalog removes every catalog row so a test can seed its own data.
func ResetCatalog(t *testing.T, db *CatalogDB) {
	t.Helper()

	_, err := db.DB.Exec(context.Background(),
		`TRUNCATE items, nomenclature_types, stages, cabinets, projects RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("Failed to reset catalog: %v", err)
	}
}
