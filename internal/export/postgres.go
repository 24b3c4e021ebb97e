package export

import (
	"context"
	"fmt"

	"promoscrape/internal/telemetry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	report_export_postgres = "export.postgres"

	postgresBatchSize = 200
)

// PostgresWriter replaces the retailer_offers table of a Postgres database.
// Everything happens in one transaction, inserts are sent in batches.
type PostgresWriter struct {
	DSN string
	tel telemetry.API
}

func NewPostgresWriter(dsn string, tel telemetry.API) PostgresWriter {
	return PostgresWriter{DSN: dsn, tel: telemetry.NewScopedAPI("export", tel)}
}

func (w PostgresWriter) Write(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return ErrNothingToWrite
	}
	err := w.write(ctx, rows)
	if err != nil {
		w.tel.ReportBroken(report_export_postgres, err, DisplayTarget(w.DSN))
		return err
	}
	return nil
}

func postgresIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func postgresPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (w PostgresWriter) write(ctx context.Context, rows []Row) error {
	align := newAligner(rows, w.tel)
	drop, create, insert := tableStatements(align.header, postgresIdent, postgresPlaceholder)

	cfg, err := pgxpool.ParseConfig(w.DSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, drop)
	if err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	_, err = tx.Exec(ctx, create)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	for start := 0; start < len(rows); start += postgresBatchSize {
		end := min(start+postgresBatchSize, len(rows))

		b := &pgx.Batch{}
		for i := start; i < end; i++ {
			b.Queue(insert, sqlArgs(align.values(i, rows[i]))...)
		}
		br := tx.SendBatch(ctx, b)
		for i := start; i < end; i++ {
			_, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}
		err = br.Close()
		if err != nil {
			return err
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	w.tel.ReportCount(report_export_postgres, int64(len(rows)))
	return nil
}
