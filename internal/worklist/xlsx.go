// Package worklist loads the input worklist from spreadsheet files.
package worklist

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

// Config controls worklist loading.
type Config struct {
	// Path is the input .xlsx file. The first row is a header; URLs live in
	// the second column.
	Path string
	// Start is the 1-based first row to process (0 or 1 means from the top).
	Start int
	// End is the 1-based last row to process, inclusive. 0 means all rows.
	End int
}

// XLSXSource implements scrape.WorklistSource over an Excel file.
type XLSXSource struct {
	cfg Config
}

// NewXLSXSource creates a worklist source for the given file.
func NewXLSXSource(cfg Config) (*XLSXSource, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("worklist path is required")
	}
	if cfg.Start < 0 || cfg.End < 0 {
		return nil, fmt.Errorf("row range must be positive")
	}
	if cfg.End > 0 && cfg.Start > cfg.End {
		return nil, fmt.Errorf("row range start %d exceeds end %d", cfg.Start, cfg.End)
	}
	return &XLSXSource{cfg: cfg}, nil
}

// Load reads the worklist. Row identity is the 1-based position among data
// rows (header excluded); rows with an empty URL cell are skipped without
// consuming an identity, matching the way blank link cells are dropped from
// the source sheet.
func (s *XLSXSource) Load(ctx context.Context) ([]scrape.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("worklist load canceled: %w", err)
	}

	f, err := excelize.OpenFile(s.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open worklist %s: %w", s.cfg.Path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("worklist %s has no sheets", s.cfg.Path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read worklist rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	items := make([]scrape.WorkItem, 0, len(rows)-1)
	row := 0
	for _, cells := range rows[1:] {
		if len(cells) < 2 {
			continue
		}
		url := strings.TrimSpace(cells[1])
		if url == "" {
			continue
		}
		row++
		if s.cfg.Start > 0 && row < s.cfg.Start {
			continue
		}
		if s.cfg.End > 0 && row > s.cfg.End {
			break
		}
		items = append(items, scrape.WorkItem{Row: row, URL: url})
	}
	return items, nil
}
