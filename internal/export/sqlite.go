package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"promoscrape/internal/telemetry"

	_ "modernc.org/sqlite"
)

const report_export_sqlite = "export.sqlite"

// SQLiteWriter replaces the retailer_offers table of a SQLite database file.
type SQLiteWriter struct {
	Path string
	tel  telemetry.API
}

func NewSQLiteWriter(path string, tel telemetry.API) SQLiteWriter {
	return SQLiteWriter{Path: path, tel: telemetry.NewScopedAPI("export", tel)}
}

func (w SQLiteWriter) Write(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return ErrNothingToWrite
	}
	err := w.write(ctx, rows)
	if err != nil {
		w.tel.ReportBroken(report_export_sqlite, err, w.Path)
		return err
	}
	return nil
}

func (w SQLiteWriter) write(ctx context.Context, rows []Row) error {
	align := newAligner(rows, w.tel)
	drop, create, insert := tableStatements(
		align.header,
		quoteIdent,
		func(int) string { return "?" },
	)

	err := os.MkdirAll(filepath.Dir(w.Path), 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	db, err := sql.Open("sqlite", w.Path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, drop)
	if err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	_, err = tx.ExecContext(ctx, create)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		_, err = stmt.ExecContext(ctx, sqlArgs(align.values(i, row))...)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	return tx.Commit()
}
