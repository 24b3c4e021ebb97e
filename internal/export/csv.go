package export

import (
	"context"
	"encoding/csv"
	"io"

	"promoscrape/internal/telemetry"
)

const report_export_csv = "export.csv"

// CSVWriter writes rows as a comma-delimited UTF-8 file with a header line.
type CSVWriter struct {
	Path string
	tel  telemetry.API
}

func NewCSVWriter(path string, tel telemetry.API) CSVWriter {
	return CSVWriter{Path: path, tel: telemetry.NewScopedAPI("export", tel)}
}

func (w CSVWriter) Write(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return ErrNothingToWrite
	}
	align := newAligner(rows, w.tel)

	err := writeAtomic(w.Path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		err := cw.Write(align.header)
		if err != nil {
			return err
		}

		record := make([]string, len(align.header))
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			for j, v := range align.values(i, row) {
				record[j] = Cell(v)
			}
			err = cw.Write(record)
			if err != nil {
				return err
			}
		}

		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		w.tel.ReportBroken(report_export_csv, err, w.Path)
		return err
	}
	return nil
}
