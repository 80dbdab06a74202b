package audit

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{
	"ID", "Session", "Event", "Date", "Time", "Duration", "Reason", "Outcome", "Created At",
}

// ExportXLSX writes the whole journal as an Excel workbook.
func (j *Journal) ExportXLSX(ctx context.Context, w io.Writer) error {
	events, err := j.AllEvents(ctx)
	if err != nil {
		return fmt.Errorf("load journal: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Selection Events"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	// Bold header row.
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for row, e := range events {
		values := []interface{}{
			e.ID, e.SessionID, e.EventType, e.Date, e.Time, e.Duration,
			e.Reason, e.Outcome, e.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, val := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
