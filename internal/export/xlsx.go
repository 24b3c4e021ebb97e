package export

import (
	"context"
	"fmt"
	"io"

	"promoscrape/internal/telemetry"

	"github.com/xuri/excelize/v2"
)

const (
	report_export_xlsx = "export.xlsx"

	// SheetName is the worksheet XLSXWriter puts rows into.
	SheetName    = "retailers"
	defaultSheet = "Sheet1"
)

// XLSXWriter writes rows into a single worksheet of a new workbook. Every
// cell is stored as text so numbers keep their upstream representation.
type XLSXWriter struct {
	Path string
	tel  telemetry.API
}

func NewXLSXWriter(path string, tel telemetry.API) XLSXWriter {
	return XLSXWriter{Path: path, tel: telemetry.NewScopedAPI("export", tel)}
}

func (w XLSXWriter) Write(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return ErrNothingToWrite
	}
	err := w.write(ctx, rows)
	if err != nil {
		w.tel.ReportBroken(report_export_xlsx, err, w.Path)
		return err
	}
	return nil
}

func (w XLSXWriter) write(ctx context.Context, rows []Row) error {
	align := newAligner(rows, w.tel)

	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("new stream writer: %w", err)
	}

	header := make([]any, len(align.header))
	for i, key := range align.header {
		header[i] = key
	}
	err = sw.SetRow("A1", header)
	if err != nil {
		return err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		values := align.values(i, row)
		cells := make([]any, len(values))
		for j, v := range values {
			if v == nil {
				continue
			}
			cells[j] = Cell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		err = sw.SetRow(cell, cells)
		if err != nil {
			return err
		}
	}

	err = sw.Flush()
	if err != nil {
		return err
	}
	err = f.DeleteSheet(defaultSheet)
	if err != nil {
		return err
	}
	index, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	return writeAtomic(w.Path, func(out io.Writer) error {
		_, err := f.WriteTo(out)
		return err
	})
}
