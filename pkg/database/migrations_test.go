//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/database"
	"github.com/ekaya-inc/ekaya-estimator/pkg/testhelpers"
)

func TestMigrate_Idempotent(t *testing.T) {
	db := testhelpers.GetCatalogDB(t)

	// The shared container is already migrated; running again must be a no-op.
	require.NoError(t, database.Migrate(db.ConnStr, zap.NewNop()))

	var version int
	var dirty bool
	err := db.DB.QueryRow(context.Background(),
		`SELECT version, dirty FROM schema_migrations`).Scan(&version, &dirty)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.False(t, dirty)
}

func TestMigrate_NameNormIndexUsesTrigram(t *testing.T) {
	db := testhelpers.GetCatalogDB(t)

	var indexdef string
	err := db.DB.QueryRow(context.Background(),
		`SELECT indexdef FROM pg_indexes WHERE tablename = 'items' AND indexdef ILIKE '%gin_trgm_ops%' LIMIT 1`).
		Scan(&indexdef)
	require.NoError(t, err)
	assert.Contains(t, indexdef, "name_norm")
}
