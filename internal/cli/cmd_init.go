package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/bimcollab/internal/config"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize bcf in the project directory",
		Long: `Creates .bcf/config.yaml with the default settings and the issue store.

Existing configuration is kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(opts.dir, force); err != nil {
				return err
			}
			cfg, err := opts.loadValidConfig()
			if err != nil {
				return err
			}
			backend, err := opts.openBackend(cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			store := cfg.Database.Driver
			if store == "sqlite" {
				store = backend.DB().Path()
			}
			newPrinter(cmd, opts.quiet).summary("Initialized bcf", [][2]string{
				{"Config", filepath.Join(opts.dir, config.BcfDir, config.ConfigFileName)},
				{"Store", store},
				{"Namespace", cfg.Project.Namespace},
			})
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")
	return cmd
}
