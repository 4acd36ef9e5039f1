package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/bimcollab/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the merged configuration",
		Long: `Configuration is merged from, lowest to highest priority:

  1. built-in defaults
  2. ~/.bcf/config.yaml
  3. .bcf/config.yaml in the project directory
  4. the file given with --config
  5. BCF_* environment variables
  6. --namespace, --model and --unit flags`,
	}
	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigGetCmd(opts))
	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print every configuration value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := opts.loadConfig()
			if err != nil {
				return err
			}

			type value struct {
				Key    string `json:"key"`
				Value  string `json:"value"`
				Source string `json:"source"`
			}
			var values []value
			for _, path := range config.Paths() {
				v, err := tc.Config.Get(path)
				if err != nil {
					return err
				}
				values = append(values, value{Key: path, Value: v, Source: tc.GetTrackedSource(path).String()})
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), values)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, v := range values {
				if showSource {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t(%s)\n", v.Key, v.Value, v.Source)
				} else {
					_, _ = fmt.Fprintf(tw, "%s\t%s\n", v.Key, v.Value)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if err := tc.Config.Validate(); err != nil {
				newPrinter(cmd, opts.quiet).warn("%v", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "show where each value came from")
	return cmd
}

func newConfigGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := opts.loadConfig()
			if err != nil {
				return err
			}
			v, err := tc.Config.Get(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
			return err
		},
	}
}
