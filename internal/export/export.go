package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"promoscrape/internal/telemetry"
)

const (
	report_export_open     = "export.open"
	report_export_mismatch = "export.row-mismatch"
)

// ErrNothingToWrite is returned by every Writer when given no rows, no
// output is created in that case.
var ErrNothingToWrite = errors.New("nothing to write")

// TableName is the table the database writers (re)create.
const TableName = "retailer_offers"

// Writer persists a complete set of rows, replacing whatever the target held before.
//
// The header is the key list of the first row. Rows with a different key set
// are written against that header: missing keys are null, extra keys are
// dropped and a warning is reported for the row.
type Writer interface {
	Write(ctx context.Context, rows []Row) error
}

func isPostgres(target string) bool {
	return strings.HasPrefix(target, "postgres://") ||
		strings.HasPrefix(target, "postgresql://")
}

// Open picks a Writer for target based on its scheme or file extension.
// Unknown extensions are written as CSV.
func Open(target string, tel telemetry.API) (Writer, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		err := errors.New("empty output target")
		telemetry.NewScopedAPI("export", tel).ReportBroken(report_export_open, err)
		return nil, err
	}
	if isPostgres(target) {
		return NewPostgresWriter(target, tel), nil
	}

	switch strings.ToLower(filepath.Ext(target)) {
	case ".json":
		return NewJSONWriter(target, tel), nil
	case ".xlsx":
		return NewXLSXWriter(target, tel), nil
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteWriter(target, tel), nil
	}
	return NewCSVWriter(target, tel), nil
}

// DisplayTarget returns target with any password in a DSN masked.
func DisplayTarget(target string) string {
	if !isPostgres(target) {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "postgres://<invalid dsn>"
	}
	return u.Redacted()
}

// aligner projects rows onto the header taken from the first row.
type aligner struct {
	header []string
	tel    telemetry.API
}

func newAligner(rows []Row, tel telemetry.API) aligner {
	return aligner{header: rows[0].Keys(), tel: tel}
}

// values returns the row values in header order.
func (a aligner) values(index int, row Row) []any {
	out := make([]any, len(a.header))
	matched := 0
	for i, key := range a.header {
		v, ok := row.Get(key)
		if ok {
			matched++
		}
		out[i] = v
	}
	if matched != len(a.header) || len(row) != len(a.header) {
		a.tel.ReportWarning(
			report_export_mismatch,
			fmt.Sprintf("row %d keys differ from header", index),
			row.Keys(),
		)
	}
	return out
}

// row returns the row re-keyed to the header.
func (a aligner) row(index int, row Row) Row {
	values := a.values(index, row)
	out := make(Row, len(a.header))
	for i, key := range a.header {
		out[i] = Field{Key: key, Value: values[i]}
	}
	return out
}

// writeAtomic writes path through a hidden temp file in the same directory
// that is renamed into place once write succeeds.
func writeAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	err = write(tmp)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	err = os.Chmod(tmpPath, 0o644)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	err = os.Rename(tmpPath, path)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
