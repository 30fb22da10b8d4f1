package chunkparse

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSQLite(t *testing.T) {
	t.Parallel()

	res := dumpFixture(t)
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, LoadSQLite(context.Background(), db, "events", res))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count))
	assert.Equal(t, 8, count)

	var (
		name  sql.NullString
		color string
		score float64
	)
	require.NoError(t, db.QueryRow(`SELECT name, color, score FROM events WHERE id = 5`).Scan(&name, &color, &score))
	assert.Equal(t, sql.NullString{String: "name-5", Valid: true}, name)
	assert.Equal(t, "RED", color)
	assert.InDelta(t, 2.5, score, 0)

	require.NoError(t, db.QueryRow(`SELECT name FROM events WHERE id = 4`).Scan(&name))
	assert.False(t, name.Valid, "missing cells are NULL")

	t.Run("loading twice appends", func(t *testing.T) {
		require.NoError(t, LoadSQLite(context.Background(), db, "events", res))
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count))
		assert.Equal(t, 16, count)
	})
}

func TestLoadSQLite_Errors(t *testing.T) {
	t.Parallel()

	res := dumpFixture(t)
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	err = LoadSQLite(context.Background(), db, "", res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedExport))

	_, err = db.Exec(`CREATE TABLE events (only_one TEXT)`)
	require.NoError(t, err)
	err = LoadSQLite(context.Background(), db, "events", res)
	require.Error(t, err, "existing table with another shape")

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count))
	assert.Zero(t, count, "failed loads roll back")
}

func TestBuildQueries(t *testing.T) {
	t.Parallel()

	cfg := &model.ParseConfiguration{
		ColumnNames: []string{"id", `odd "name"`, "color"},
		ColumnTypes: []model.ColumnType{model.ColumnTypeNumeric, model.ColumnTypeString, model.ColumnTypeCategorical},
	}
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "t" ("id" REAL, "odd ""name""" TEXT, "color" TEXT)`,
		buildCreateTableQuery("t", cfg))
	assert.Equal(t, `INSERT INTO "t" VALUES (?, ?, ?)`, buildInsertQuery("t", 3))
}
