package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/infrastructure/tabular"
	"github.com/ahrav/go-tally/internal/application"
	"github.com/ahrav/go-tally/internal/domain"
)

// runOptions holds the resolved flags of the run command.
type runOptions struct {
	config       string
	inputs       []string
	sheet        string
	sourceColumn string
	output       string
	summary      string
	metricsFile  string
	precision    int
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score, rank and summarize input tables",
		Long: `Run executes a run configuration over one or more input tables.

Several inputs are concatenated by column name before ingestion. With
--source-column each row is tagged with the name of the file it came from,
which the configuration can use as its group column.

The ranking is written to --output and the group statistics to --summary.
An XLSX output without --summary receives every report sheet. Overall
statistics and skipped subjects are printed when the run completes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := runOptions{
				config:       v.GetString("config"),
				inputs:       v.GetStringSlice("input"),
				sheet:        v.GetString("sheet"),
				sourceColumn: v.GetString("source-column"),
				output:       v.GetString("output"),
				summary:      v.GetString("summary"),
				metricsFile:  v.GetString("metrics-file"),
				precision:    v.GetInt("precision"),
			}
			return runScoring(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringP("config", "c", "", "run configuration file (YAML)")
	f.StringSliceP("input", "i", nil, "input table (.csv, .tsv, .xlsx); repeat to concatenate")
	f.String("sheet", "", "worksheet to read from XLSX inputs (default first sheet)")
	f.String("source-column", "", "add a column carrying each row's input file name")
	f.StringP("output", "o", "", "ranking output file (.csv, .tsv, .xlsx)")
	f.StringP("summary", "s", "", "group statistics output file (.csv, .tsv, .xlsx)")
	f.String("metrics-file", "", "write run metrics in Prometheus text format to this file")
	f.IntP("precision", "p", 2, "decimal places in written and printed scores (-1 for full precision)")

	return cmd
}

func runScoring(ctx context.Context, out io.Writer, opts runOptions) error {
	if opts.config == "" {
		return errors.New("a run configuration is required (--config)")
	}
	if len(opts.inputs) == 0 {
		return errors.New("at least one input is required (--input)")
	}

	loader, err := application.NewConfigLoader(application.NewDefaultUnitRegistry())
	if err != nil {
		return err
	}
	plan, err := loader.LoadFromFile(ctx, opts.config)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", opts.config, err)
	}

	table, err := readInputs(ctx, opts)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	engine := application.NewEngine(application.WithMetrics(middleware.NewPrometheusMetrics(registry)))

	report, err := engine.Run(ctx, plan, table)
	if err != nil {
		return err
	}

	if err := writeReport(ctx, report, opts); err != nil {
		return err
	}
	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	printReport(out, report, opts.precision)
	return nil
}

// readInputs reads every input and concatenates them when there is more
// than one or rows must be tagged with their source.
func readInputs(ctx context.Context, opts runOptions) (domain.Table, error) {
	logger := zerolog.Ctx(ctx)

	tables := make([]domain.NamedTable, 0, len(opts.inputs))
	for _, path := range opts.inputs {
		reader, err := tabular.Open(path, tabular.WithSheet(opts.sheet))
		if err != nil {
			return domain.Table{}, err
		}
		table, err := reader.Read(ctx)
		if err != nil {
			return domain.Table{}, err
		}
		logger.Debug().Str("path", path).Int("rows", len(table.Rows)).Msg("input read")
		tables = append(tables, domain.NamedTable{Name: tabular.TableName(path), Table: table})
	}

	if len(tables) == 1 && opts.sourceColumn == "" {
		return tables[0].Table, nil
	}
	return tabular.Concat(opts.sourceColumn, tables...)
}

// writeReport writes the ranking and summary files. A spreadsheet output
// holds every report sheet unless the summary has a file of its own;
// delimited outputs hold a single table.
func writeReport(ctx context.Context, report domain.Report, opts runOptions) error {
	if opts.output != "" {
		format, err := tabular.FormatOf(opts.output)
		if err != nil {
			return err
		}

		var tables []domain.NamedTable
		switch {
		case format != tabular.FormatXLSX:
			tables = []domain.NamedTable{{Name: tabular.RankingSheet, Table: tabular.RankingTable(report, opts.precision)}}
		case opts.summary != "":
			tables = []domain.NamedTable{{Name: tabular.RankingSheet, Table: tabular.RankingTable(report, opts.precision)}}
			if len(report.Failures) > 0 {
				tables = append(tables, domain.NamedTable{Name: tabular.FailuresSheet, Table: tabular.FailureTable(report)})
			}
		default:
			tables = tabular.ReportTables(report, opts.precision)
		}

		if err := writeTables(ctx, opts.output, tables...); err != nil {
			return err
		}
	}

	if opts.summary != "" {
		summary := domain.NamedTable{Name: tabular.SummarySheet, Table: tabular.SummaryTable(report, opts.precision)}
		if err := writeTables(ctx, opts.summary, summary); err != nil {
			return err
		}
	}
	return nil
}

func writeTables(ctx context.Context, path string, tables ...domain.NamedTable) error {
	writer, err := tabular.Create(path)
	if err != nil {
		return err
	}
	if err := writer.Write(ctx, tables...); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	zerolog.Ctx(ctx).Info().Str("path", path).Int("tables", len(tables)).Msg("report written")
	return nil
}
