// Package tabular reads and writes the spreadsheets and delimited files that
// carry scores into and rankings out of a run.
package tabular

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// Format identifies a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", ports.NewTableError(path, ports.ErrUnsupportedFormat)
	}
}

type options struct {
	sheet string
}

// Option configures a reader or writer.
type Option func(*options)

// WithSheet selects the sheet to read from a workbook. Readers of delimited
// files ignore it.
func WithSheet(name string) Option { return func(o *options) { o.sheet = name } }

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open returns a reader for path chosen by its extension.
func Open(path string, opts ...Option) (ports.TableReader, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	switch format {
	case FormatCSV:
		return NewDelimitedReader(path, ','), nil
	case FormatTSV:
		return NewDelimitedReader(path, '\t'), nil
	default:
		return NewXLSXReader(path, o.sheet), nil
	}
}

// Create returns a writer for path chosen by its extension.
func Create(path string) (ports.TableWriter, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		return NewDelimitedWriter(path, ','), nil
	case FormatTSV:
		return NewDelimitedWriter(path, '\t'), nil
	default:
		return NewXLSXWriter(path), nil
	}
}

// normalize pads ragged rows to a common width, strips a UTF-8 byte order
// mark from the first header cell and drops rows in which every cell is
// blank. Spreadsheet exports commonly produce all three.
func normalize(path string, records [][]string) (domain.Table, error) {
	if len(records) == 0 {
		return domain.Table{}, ports.NewTableError(path, ports.ErrEmptyTable)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	width := len(header)
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		rows = append(rows, rec)
		width = max(width, len(rec))
	}
	if width == 0 {
		return domain.Table{}, ports.NewTableError(path, ports.ErrEmptyTable)
	}

	header = pad(header, width)
	for i := range rows {
		rows[i] = pad(rows[i], width)
	}
	return domain.Table{Header: header, Rows: rows}, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

// Concat appends the rows of tables under a single header. Columns are
// matched by header name; the first table's column order is kept and
// columns seen only in later tables are appended. A table whose header names
// a column twice is rejected with ErrDuplicateColumn. When sourceColumn is not
// empty a column of that name is added carrying each table's Name, which
// lets one ingestion config tag subjects by input file.
func Concat(sourceColumn string, tables ...domain.NamedTable) (domain.Table, error) {
	if len(tables) == 0 {
		return domain.Table{}, fmt.Errorf("concat: %w", ports.ErrEmptyTable)
	}

	var header []string
	index := make(map[string]int)
	add := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		index[name] = len(header)
		header = append(header, name)
		return len(header) - 1
	}

	mappings := make([][]int, len(tables))
	for t, nt := range tables {
		mappings[t] = make([]int, len(nt.Table.Header))
		seen := make(map[string]struct{}, len(nt.Table.Header))
		for c, name := range nt.Table.Header {
			name = strings.TrimSpace(name)
			if _, dup := seen[name]; dup {
				column := name
				if column == "" {
					column = fmt.Sprintf("#%d", c+1)
				}
				return domain.Table{}, &ports.TableError{Path: nt.Name, Column: column, Err: ports.ErrDuplicateColumn}
			}
			seen[name] = struct{}{}
			mappings[t][c] = add(name)
		}
	}
	source := -1
	if sourceColumn != "" {
		if _, clash := index[sourceColumn]; clash {
			return domain.Table{}, fmt.Errorf("concat: source column %q already present in input", sourceColumn)
		}
		source = add(sourceColumn)
	}

	var rows [][]string
	for t, nt := range tables {
		for _, row := range nt.Table.Rows {
			out := make([]string, len(header))
			for c, cell := range row {
				if c < len(mappings[t]) {
					out[mappings[t][c]] = cell
				}
			}
			if source >= 0 {
				out[source] = nt.Name
			}
			rows = append(rows, out)
		}
	}
	return domain.Table{Header: header, Rows: rows}, nil
}

// TableName derives a table name from a file path: the base name without
// its extension.
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
