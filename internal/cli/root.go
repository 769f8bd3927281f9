// Package cli implements the tally command line: running a scoring
// configuration over spreadsheet inputs and validating configurations.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Build information, set with -ldflags at release time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Execute builds the command tree and runs it with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand returns the tally command with its subcommands. Every
// flag can also be set from the environment with the TALLY_ prefix, e.g.
// TALLY_LOG_LEVEL=debug or TALLY_SOURCE_COLUMN=file.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "tally",
		Short: "Weighted aggregation and ranking of tabular scores",
		Long: `tally turns per-subject measurements from CSV, TSV or XLSX sheets into
weighted category averages, composite scores, rankings and per-group
statistics, as declared by a YAML run configuration.

Examples:
  tally validate --config examples/grades.yaml
  tally run --config examples/grades.yaml --input grades.xlsx --output ranking.xlsx
  tally run -c examples/image_composite.yaml -i type1.csv -i type2.csv --summary summary.csv`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(v, cmd); err != nil {
				return err
			}
			logger, err := newLogger(v.GetString("log-level"), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			log.Logger = logger

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(logger.WithContext(ctx))
			return nil
		},
	}

	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().String("env-file", "", "environment file to load (default .env when present)")

	root.AddCommand(newRunCommand(v), newValidateCommand(v))
	return root
}

// initConfig loads the environment file and binds the executing command's
// flags to v so that each flag falls back to its TALLY_ variable.
func initConfig(v *viper.Viper, cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	v.SetEnvPrefix("TALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	return nil
}

// newLogger builds a console logger writing to w at the named level.
func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}
