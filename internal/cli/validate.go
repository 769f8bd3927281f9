package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ahrav/go-tally/internal/application"
)

func newValidateCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate run configurations",
		Long: `Validate parses each run configuration, checks its structure and unit
parameters, and builds every unit without reading any input.

Examples:
  tally validate examples/grades.yaml
  tally validate --config examples/image_composite.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if cfg := v.GetString("config"); cfg != "" {
				files = append([]string{cfg}, files...)
			}
			if len(files) == 0 {
				return errors.New("no configuration to validate (pass files or --config)")
			}

			loader, err := application.NewConfigLoader(application.NewDefaultUnitRegistry())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var invalid int
			for _, path := range files {
				plan, err := loader.LoadFromFile(cmd.Context(), path)
				if err != nil {
					invalid++
					fmt.Fprintf(out, "✗ %s: %v\n", path, err)
					continue
				}
				ids := make([]string, 0, len(plan.Units()))
				for _, u := range plan.Units() {
					ids = append(ids, u.Name())
				}
				fmt.Fprintf(out, "✓ %s: %s (%s)\n", path, plan.Name(), strings.Join(ids, " → "))
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d configurations are invalid", invalid, len(files))
			}
			return nil
		},
	}

	cmd.Flags().StringP("config", "c", "", "run configuration file (YAML)")
	return cmd
}
