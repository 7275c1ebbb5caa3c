package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"doceval/internal/score"
)

// WriteXLSX writes a run summary workbook with one row per scored sample,
// alongside the JSON reports. Reports are expected pre-sorted by sample id.
func (w *Writer) WriteXLSX(s RunSummary, reports []score.Report) error {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Run Summary"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headers := []string{
		"Sample ID",
		"Matched Blocks",
		"Text Accuracy",
		"Layout Accuracy",
		"Block Count Delta",
		"Latency (ms)",
		"Attempts",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for row, r := range reports {
		layout := "n/a"
		if r.Aggregate.LayoutAccuracy != nil {
			layout = fmt.Sprintf("%.4f", *r.Aggregate.LayoutAccuracy)
		}
		values := []any{
			r.SampleID,
			len(r.Matches),
			r.Aggregate.TextAccuracy,
			layout,
			r.Aggregate.BlockCountDelta,
			r.LatencyMS,
			r.Attempts,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	path := filepath.Join(w.dir, "run_summary.xlsx")
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	w.log.Info("report.xlsx_written",
		"run_id", s.RunID,
		"rows", len(reports),
		"path", path,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
