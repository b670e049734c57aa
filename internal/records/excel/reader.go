// Package excel reads batch records from xlsx workbooks.
package excel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"ferry/internal/records"
)

const (
	openAttempts  = 3
	openRetryWait = 2 * time.Second
)

// Reader loads records from a spreadsheet on the filesystem. Spreadsheets on
// network shares are frequently locked by other readers, so opening is retried
// a few times before giving up.
type Reader struct {
	path          string
	sheet         string
	batchIDColumn string
}

// NewReader constructs a Reader. When sheet is empty the workbook's first
// sheet is used.
func NewReader(path, sheet, batchIDColumn string) *Reader {
	return &Reader{path: path, sheet: sheet, batchIDColumn: batchIDColumn}
}

// LoadRecords implements records.Source. The first row is treated as the
// header; every following row becomes one Record keyed by the header names.
func (r *Reader) LoadRecords(ctx context.Context) ([]records.Record, error) {
	file, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = file.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook %s has no sheets", records.ErrMalformedSource, r.path)
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	idIndex := -1
	for i, name := range header {
		if strings.TrimSpace(name) == r.batchIDColumn {
			idIndex = i
			break
		}
	}
	if idIndex < 0 {
		return nil, fmt.Errorf("%w: batch ID column %q not found in sheet %q", records.ErrMalformedSource, r.batchIDColumn, sheet)
	}

	recs := make([]records.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		columns := make(map[string]string, len(header))
		for i, name := range header {
			key := strings.TrimSpace(name)
			if key == "" {
				continue
			}
			// GetRows trims trailing empty cells; absent cells stay present
			// as empty strings so the filter sees the column.
			if i < len(row) {
				columns[key] = row[i]
			} else {
				columns[key] = ""
			}
		}
		id := strings.TrimSpace(columns[r.batchIDColumn])
		if id == "" {
			continue
		}
		recs = append(recs, records.Record{BatchID: id, Columns: columns})
	}
	return recs, nil
}

func (r *Reader) open(ctx context.Context) (*excelize.File, error) {
	var lastErr error
	wait := openRetryWait
	for attempt := 1; attempt <= openAttempts; attempt++ {
		file, err := excelize.OpenFile(r.path)
		if err == nil {
			return file, nil
		}
		lastErr = err
		if attempt == openAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return nil, fmt.Errorf("open workbook %s: %w", r.path, lastErr)
}
