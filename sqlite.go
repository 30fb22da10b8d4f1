package chunkparse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/domain/model"
	"github.com/nao1215/chunkparse/frame"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// OpenSQLite opens a SQLite database; dsn is a file path or ":memory:".
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewErrorContext("open sqlite").WithObject(dsn).Error(err)
	}
	return db, nil
}

// LoadSQLite creates table if it does not exist and inserts every row of the
// result in one transaction. Numeric columns are REAL, categorical and string
// columns TEXT; categorical cells hold the domain label.
func LoadSQLite(ctx context.Context, db *sql.DB, table string, res *Result) (retErr error) {
	ec := NewErrorContext("load sqlite").WithObject(table)
	if table == "" {
		return ec.Error(errors.Mark(errors.New("empty table name"), ErrUnsupportedExport))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ec.Error(err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, buildCreateTableQuery(table, res.Config)); err != nil {
		return ec.WithDetails("create table").Error(err)
	}

	stmt, err := tx.PrepareContext(ctx, buildInsertQuery(table, res.Config.NumColumns()))
	if err != nil {
		return ec.WithDetails("prepare insert").Error(err)
	}
	defer stmt.Close()

	err = frame.EachRow(res.Table, res.Config.Domains, func(row []any) error {
		_, err := stmt.ExecContext(ctx, row...)
		return err
	})
	if err != nil {
		return ec.WithDetails("insert rows").Error(err)
	}

	if err := tx.Commit(); err != nil {
		return ec.WithDetails("commit").Error(err)
	}
	return nil
}

// buildCreateTableQuery constructs a CREATE TABLE query for the columns of cfg
func buildCreateTableQuery(table string, cfg *model.ParseConfiguration) string {
	columns := make([]string, 0, cfg.NumColumns())
	for i, name := range cfg.ColumnNames {
		columns = append(columns, fmt.Sprintf(`%s %s`, quoteIdent(name), sqliteType(cfg.ColumnTypes[i])))
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, quoteIdent(table), strings.Join(columns, ", "))
}

// buildInsertQuery constructs an INSERT query with count placeholders
func buildInsertQuery(table string, count int) string {
	return fmt.Sprintf(`INSERT INTO %s VALUES (%s)`,
		quoteIdent(table), strings.TrimSuffix(strings.Repeat("?, ", count), ", "))
}

func sqliteType(ct model.ColumnType) string {
	if ct == model.ColumnTypeNumeric || ct == model.ColumnTypeBad {
		return "REAL"
	}
	return "TEXT"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
