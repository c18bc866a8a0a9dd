// Package sink serializes run results to spreadsheet files.
package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

// placeholder is written for fields the extractor could not find.
const placeholder = "N/A"

var recordHeader = []string{
	"Row", "App URL", "App Name", "Downloads", "Revenue", "Monetization",
	"Rating", "Release Date", "Last Update", "iOS App Store ID",
}

// Config controls sink output.
type Config struct {
	// Path is the target .xlsx file.
	Path string
	// Formatting applies text number formats, fitted column widths, a
	// frozen header row, and an autofilter. Disable for faster writes.
	Formatting bool
}

// XLSXRecordSink writes succeeded records, ordered by row, to an Excel file.
type XLSXRecordSink struct {
	cfg    Config
	logger *zap.Logger
}

// NewXLSXRecordSink returns a record sink targeting cfg.Path.
func NewXLSXRecordSink(cfg Config, logger *zap.Logger) (*XLSXRecordSink, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXRecordSink{cfg: cfg, logger: logger}, nil
}

// WriteRecords writes one row per record. Callers pass rows already ordered
// by row index; the sink preserves that order.
func (s *XLSXRecordSink) WriteRecords(ctx context.Context, rows []scrape.ResultRow) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("record write canceled: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	if err := f.SetSheetRow(sheet, "A1", &recordHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cells := recordCells(row)
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", row.Item.Row, err)
		}
	}

	if s.cfg.Formatting {
		if err := applyFormatting(f, sheet, recordHeader, len(rows)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(s.cfg.Path); err != nil {
		return fmt.Errorf("save records to %s: %w", s.cfg.Path, err)
	}
	s.logger.Info("records written", zap.String("path", s.cfg.Path), zap.Int("rows", len(rows)))
	return nil
}

func recordCells(row scrape.ResultRow) []any {
	rec := row.Record
	return []any{
		row.Item.Row,
		orPlaceholder(row.Item.URL),
		orPlaceholder(rec.Name),
		orPlaceholder(rec.Downloads),
		orPlaceholder(rec.Revenue),
		orPlaceholder(rec.Monetization),
		orPlaceholder(rec.Rating),
		orPlaceholder(rec.ReleaseDate),
		orPlaceholder(rec.LastUpdate),
		orPlaceholder(rec.AppID),
	}
}

func orPlaceholder(v string) string {
	if v == "" {
		return placeholder
	}
	return v
}

var failureHeader = []string{"No.", "App Link"}

// XLSXFailureSink writes terminally failed items in the same shape as the
// input worklist (links in the second column) so the file can be re-fed as
// a worklist for a follow-up run.
type XLSXFailureSink struct {
	cfg    Config
	logger *zap.Logger
}

// NewXLSXFailureSink returns a failure sink targeting cfg.Path.
func NewXLSXFailureSink(cfg Config, logger *zap.Logger) (*XLSXFailureSink, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("failed-items path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXFailureSink{cfg: cfg, logger: logger}, nil
}

// WriteFailures writes one row per failed item, ordered as given.
func (s *XLSXFailureSink) WriteFailures(ctx context.Context, items []scrape.WorkItem) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failure write canceled: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	if err := f.SetSheetRow(sheet, "A1", &failureHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, item := range items {
		cells := []any{item.Row, item.URL}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", item.Row, err)
		}
	}

	if s.cfg.Formatting {
		if err := applyFormatting(f, sheet, failureHeader, len(items)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(s.cfg.Path); err != nil {
		return fmt.Errorf("save failures to %s: %w", s.cfg.Path, err)
	}
	s.logger.Info("failed items written", zap.String("path", s.cfg.Path), zap.Int("rows", len(items)))
	return nil
}

// applyFormatting mirrors the formatting of the sheets this tool replaces:
// text cells, widths fit to the longest entry, frozen header, autofilter.
func applyFormatting(f *excelize.File, sheet string, header []string, dataRows int) error {
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return fmt.Errorf("resolve last column: %w", err)
	}

	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		return fmt.Errorf("create text style: %w", err)
	}
	if err := f.SetColStyle(sheet, fmt.Sprintf("A:%s", lastCol), textStyle); err != nil {
		return fmt.Errorf("apply text style: %w", err)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("reread rows for widths: %w", err)
	}
	for i := range header {
		maxLen := 0
		for _, cells := range rows {
			if i < len(cells) && len(cells[i]) > maxLen {
				maxLen = len(cells[i])
			}
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("resolve column %d: %w", i+1, err)
		}
		if err := f.SetColWidth(sheet, col, col, float64(maxLen+2)); err != nil {
			return fmt.Errorf("set width for column %s: %w", col, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header row: %w", err)
	}

	filterRange := fmt.Sprintf("A1:%s%d", lastCol, dataRows+1)
	if err := f.AutoFilter(sheet, filterRange, nil); err != nil {
		return fmt.Errorf("apply autofilter: %w", err)
	}
	return nil
}
