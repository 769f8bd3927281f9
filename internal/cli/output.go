package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ahrav/go-tally/internal/domain"
)

// printReport writes a plain-text overview of report: counts, overall
// score statistics and every skipped subject.
func printReport(w io.Writer, report domain.Report, precision int) {
	fmt.Fprintf(w, "run %s (%s)\n", report.Name, report.RunID)
	fmt.Fprintf(w, "subjects: %d  ranked: %d  failures: %d\n",
		len(report.Subjects), len(report.Ranking), len(report.Failures))

	scores := make([]float64, len(report.Ranking))
	for i, e := range report.Ranking {
		scores[i] = e.Score
	}
	if stats, ok := domain.Describe(scores); ok {
		fmt.Fprintf(w, "score  max %s  min %s  mean %s  median %s\n",
			number(stats.Max, precision),
			number(stats.Min, precision),
			number(stats.Mean, precision),
			number(stats.Median, precision))
	}

	for _, row := range report.Summaries {
		if row.Group != domain.OverallGroup {
			continue
		}
		fmt.Fprintf(w, "%s (n=%d)  max %s  min %s  mean %s  median %s\n",
			row.Metric, row.Count,
			number(row.Max, precision),
			number(row.Min, precision),
			number(row.Mean, precision),
			number(row.Median, precision))
	}

	if len(report.Failures) > 0 {
		fmt.Fprintln(w, "skipped:")
		for _, f := range report.Failures {
			fmt.Fprintf(w, "  %s\n", f.Error())
		}
	}
}

func number(v float64, precision int) string {
	if precision < 0 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(domain.Round(v, precision), 'f', precision, 64)
}
