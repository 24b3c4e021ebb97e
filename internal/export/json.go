package export

import (
	"context"
	"encoding/json"
	"io"

	"promoscrape/internal/telemetry"
)

const report_export_json = "export.json"

// JSONWriter writes rows as an indented JSON array of objects, keys keep column order.
type JSONWriter struct {
	Path string
	tel  telemetry.API
}

func NewJSONWriter(path string, tel telemetry.API) JSONWriter {
	return JSONWriter{Path: path, tel: telemetry.NewScopedAPI("export", tel)}
}

func (w JSONWriter) Write(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return ErrNothingToWrite
	}
	align := newAligner(rows, w.tel)

	aligned := make([]Row, len(rows))
	for i, row := range rows {
		aligned[i] = align.row(i, row)
	}

	err := writeAtomic(w.Path, func(out io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(aligned)
	})
	if err != nil {
		w.tel.ReportBroken(report_export_json, err, w.Path)
		return err
	}
	return nil
}
