package tabular

import (
	"math"
	"strconv"

	"github.com/ahrav/go-tally/internal/domain"
)

// Sheet names used for report export.
const (
	RankingSheet  = "ranking"
	SummarySheet  = "summary"
	FailuresSheet = "failures"
)

// RankingTable lays out the ranking with one row per ranked subject: rank,
// subject id, label, group, score, then one column per aggregate category
// in first-seen order. Values are rounded to precision places here and
// nowhere earlier.
func RankingTable(report domain.Report, precision int) domain.Table {
	categories := report.Categories()
	header := append([]string{"rank", "subject", "label", "group", "score"}, categories...)

	subjects := report.SubjectIndex()
	aggregates := report.AggregatesBySubject()

	rows := make([][]string, 0, len(report.Ranking))
	for _, entry := range report.Ranking {
		subj := subjects[entry.SubjectID]
		row := make([]string, 0, len(header))
		row = append(row,
			strconv.Itoa(entry.Rank),
			entry.SubjectID,
			subj.Label,
			subj.Group,
			formatNumber(entry.Score, precision),
		)
		for _, c := range categories {
			v, ok := aggregates[entry.SubjectID][c]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, formatNumber(v, precision))
		}
		rows = append(rows, row)
	}
	return domain.Table{Header: header, Rows: rows}
}

// SummaryTable lays out group statistics, one row per (metric, group).
func SummaryTable(report domain.Report, precision int) domain.Table {
	header := []string{"metric", "group", "count", "mean", "min", "max", "median"}
	rows := make([][]string, 0, len(report.Summaries))
	for _, s := range report.Summaries {
		rows = append(rows, []string{
			s.Metric,
			s.Group,
			strconv.Itoa(s.Count),
			formatNumber(s.Mean, precision),
			formatNumber(s.Min, precision),
			formatNumber(s.Max, precision),
			formatNumber(s.Median, precision),
		})
	}
	return domain.Table{Header: header, Rows: rows}
}

// FailureTable lists skipped subjects and rows.
func FailureTable(report domain.Report) domain.Table {
	header := []string{"subject", "row", "stage", "kind", "reason"}
	rows := make([][]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		row := ""
		if f.Row > 0 {
			row = strconv.Itoa(f.Row)
		}
		rows = append(rows, []string{f.SubjectID, row, f.Stage, string(f.Kind), f.Reason})
	}
	return domain.Table{Header: header, Rows: rows}
}

// ReportTables returns the ranking and summary tables, plus the failure
// table when the run skipped anything.
func ReportTables(report domain.Report, precision int) []domain.NamedTable {
	tables := []domain.NamedTable{
		{Name: RankingSheet, Table: RankingTable(report, precision)},
		{Name: SummarySheet, Table: SummaryTable(report, precision)},
	}
	if len(report.Failures) > 0 {
		tables = append(tables, domain.NamedTable{Name: FailuresSheet, Table: FailureTable(report)})
	}
	return tables
}

func formatNumber(v float64, precision int) string {
	if precision < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(domain.Round(v, precision), 'f', precision, 64)
}
