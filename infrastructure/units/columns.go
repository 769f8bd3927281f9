package units

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-tally/internal/ports"
)

// columnResolver maps configured column references onto header positions.
//
// A reference is tried in this order:
//  1. "#N" addresses the N-th column (1-based) regardless of its name.
//  2. Exact match against the trimmed header cell.
//  3. Unicode case-folded match.
//  4. Closest case-folded header within maxDistance Levenshtein edits.
//     Ties resolve to the leftmost column.
type columnResolver struct {
	header      []string
	folded      []string
	caser       cases.Caser
	maxDistance int
}

func newColumnResolver(header []string, maxDistance int) *columnResolver {
	// Casers carry state and are not shared between goroutines.
	caser := cases.Fold()
	trimmed := make([]string, len(header))
	folded := make([]string, len(header))
	for i, h := range header {
		trimmed[i] = strings.TrimSpace(h)
		folded[i] = caser.String(trimmed[i])
	}
	return &columnResolver{header: trimmed, folded: folded, caser: caser, maxDistance: maxDistance}
}

// resolve returns the zero-based index of ref.
func (r *columnResolver) resolve(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1, fmt.Errorf("%w: empty column reference", ports.ErrColumnNotFound)
	}

	if pos, ok := strings.CutPrefix(ref, "#"); ok {
		if n, err := strconv.Atoi(pos); err == nil {
			if n < 1 || n > len(r.header) {
				return -1, fmt.Errorf("%w: %s is outside 1..%d", ports.ErrColumnNotFound, ref, len(r.header))
			}
			return n - 1, nil
		}
	}

	for i, h := range r.header {
		if h == ref {
			return i, nil
		}
	}

	folded := r.caser.String(ref)
	for i, h := range r.folded {
		if h == folded {
			return i, nil
		}
	}

	if r.maxDistance > 0 {
		best, bestDistance := -1, r.maxDistance+1
		for i, h := range r.folded {
			if d := levenshtein.ComputeDistance(h, folded); d < bestDistance {
				best, bestDistance = i, d
			}
		}
		if best >= 0 {
			return best, nil
		}
	}

	return -1, fmt.Errorf("%w: %q", ports.ErrColumnNotFound, ref)
}

// name returns the header text of column idx.
func (r *columnResolver) name(idx int) string {
	if idx < 0 || idx >= len(r.header) {
		return ""
	}
	return r.header[idx]
}

// cell returns the trimmed cell at idx, or "" for short rows and idx < 0.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
