package tabular

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var (
	_ ports.TableReader = (*XLSXReader)(nil)
	_ ports.TableWriter = (*XLSXWriter)(nil)
)

const maxSheetName = 31

// XLSXReader reads one sheet of a workbook.
type XLSXReader struct {
	path  string
	sheet string
}

// NewXLSXReader returns a reader for path. An empty sheet reads the first
// sheet of the workbook.
func NewXLSXReader(path, sheet string) *XLSXReader {
	return &XLSXReader{path: path, sheet: sheet}
}

// Read returns the selected sheet with its stored cell values. Number
// formats are ignored so measurements keep their full precision.
func (r *XLSXReader) Read(ctx context.Context) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return domain.Table{}, ports.NewTableError(r.path, err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return domain.Table{}, ports.NewTableError(r.path, ports.ErrEmptyTable)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.Table{}, ports.NewTableError(r.path, fmt.Errorf("sheet %q: %w", sheet, err))
	}
	return normalize(r.path, rows)
}

// XLSXWriter writes each table to its own sheet of a new workbook.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter returns a writer for path. Existing files are replaced.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write stores tables in order, one sheet each. Cells that hold a plain
// number are written as numeric cells.
func (w *XLSXWriter) Write(ctx context.Context, tables ...domain.NamedTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(tables) == 0 {
		return ports.NewTableError(w.path, ports.ErrEmptyTable)
	}

	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	used := make(map[string]struct{}, len(tables))
	for i, nt := range tables {
		name := uniqueSheetName(sheetName(nt.Name, i), used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return ports.NewTableError(w.path, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return ports.NewTableError(w.path, err)
		}
		if err := writeSheet(f, name, nt.Table); err != nil {
			return ports.NewTableError(w.path, fmt.Errorf("sheet %q: %w", name, err))
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(w.path); err != nil {
		return ports.NewTableError(w.path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, table domain.Table) error {
	header := make([]any, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for r, row := range table.Rows {
		cells := make([]any, len(row))
		for c, v := range row {
			cells[c] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return nil
}

// cellValue returns s as a float64 when it is a finite plain number.
// Identifiers with leading zeros stay text so they survive a round trip.
func cellValue(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return s
	}
	digits := strings.TrimPrefix(t, "-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return s
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return s
	}
	return v
}

// sheetName replaces characters Excel rejects and truncates to the sheet
// name limit.
func sheetName(name string, idx int) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = fmt.Sprintf("Sheet%d", idx+1)
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

func uniqueSheetName(name string, used map[string]struct{}) string {
	candidate := name
	for n := 2; ; n++ {
		if _, taken := used[strings.ToLower(candidate)]; !taken {
			break
		}
		suffix := fmt.Sprintf("_%d", n)
		r := []rune(name)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = struct{}{}
	return candidate
}
