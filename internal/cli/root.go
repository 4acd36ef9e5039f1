// Package cli implements the bcf command-line interface.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions holds global flags and the per-invocation viper instance.
type rootOptions struct {
	cfgFile string
	dir     string
	verbose bool
	quiet   bool
	jsonOut bool

	// logger is built by setupLogging; installDefault also makes it the
	// process-wide default.
	logger         *slog.Logger
	installDefault bool

	v *viper.Viper
}

// flagPaths binds global override flags to config paths.
var flagPaths = map[string]string{
	"namespace": "project.namespace",
	"model":     "project.model",
	"unit":      "export.unit",
}

// newRootCmd builds the command tree.
func newRootCmd(opts *rootOptions) *cobra.Command {
	opts.v = viper.New()

	cmd := &cobra.Command{
		Use:   "bcf",
		Short: "Exchange model issues as BCF 2.1 archives",
		Long: `bcf converts model issues to and from BCF 2.1 (BIM Collaboration Format).

Issues, their viewpoints and object groups are kept in a local store
(.bcf/bcf.db by default, or PostgreSQL). Archives exchange them with other
BIM tools.

Quick start:
  bcf init                              Create .bcf/config.yaml
  bcf index load metadata.json          Load the IFC index of a federated model
  bcf import issues.bcfzip              Import an archive into the store
  bcf issues list                       List stored issues
  bcf export -o out.bcfzip              Export every stored issue`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file merged over .bcf/config.yaml")
	pf.StringVarP(&opts.dir, "dir", "C", ".", "project directory")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-essential output")
	pf.BoolVar(&opts.jsonOut, "json", false, "output as JSON")
	pf.String("namespace", "", "namespace (overrides project.namespace)")
	pf.String("model", "", "model (overrides project.model)")
	pf.String("unit", "", "display unit mm|cm|dm|m|ft (overrides export.unit)")
	for name, path := range flagPaths {
		_ = opts.v.BindPFlag(path, pf.Lookup(name))
	}

	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newIssuesCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI. Errors are printed before being returned.
func Execute() error {
	opts := &rootOptions{installDefault: true}
	err := newRootCmd(opts).Execute()
	if err != nil {
		PrintError(os.Stderr, err, opts.verbose)
	}
	return err
}
