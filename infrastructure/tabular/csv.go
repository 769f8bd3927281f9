package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var (
	_ ports.TableReader = (*DelimitedReader)(nil)
	_ ports.TableWriter = (*DelimitedWriter)(nil)
)

// DelimitedReader reads a comma or tab separated file.
type DelimitedReader struct {
	path  string
	comma rune
}

// NewDelimitedReader returns a reader for path using comma as the field
// separator.
func NewDelimitedReader(path string, comma rune) *DelimitedReader {
	return &DelimitedReader{path: path, comma: comma}
}

// Read loads the whole file. The first record is the header.
func (r *DelimitedReader) Read(ctx context.Context) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}

	f, err := os.Open(r.path)
	if err != nil {
		return domain.Table{}, ports.NewTableError(r.path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = r.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return domain.Table{}, ports.NewTableError(r.path, fmt.Errorf("parse: %w", err))
	}
	return normalize(r.path, records)
}

// DelimitedWriter writes a single table as a comma or tab separated file.
type DelimitedWriter struct {
	path  string
	comma rune
}

// NewDelimitedWriter returns a writer for path using comma as the field
// separator.
func NewDelimitedWriter(path string, comma rune) *DelimitedWriter {
	return &DelimitedWriter{path: path, comma: comma}
}

// Write stores exactly one table. Delimited files have no sheets, so the
// table name is ignored.
func (w *DelimitedWriter) Write(ctx context.Context, tables ...domain.NamedTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(tables) != 1 {
		return ports.NewTableError(w.path, fmt.Errorf("delimited output holds one table, got %d", len(tables)))
	}

	f, err := os.Create(w.path)
	if err != nil {
		return ports.NewTableError(w.path, err)
	}

	cw := csv.NewWriter(f)
	cw.Comma = w.comma
	table := tables[0].Table
	if err := cw.Write(table.Header); err != nil {
		f.Close()
		return ports.NewTableError(w.path, err)
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		f.Close()
		return ports.NewTableError(w.path, err)
	}
	if err := f.Close(); err != nil {
		return ports.NewTableError(w.path, err)
	}
	return nil
}
