package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	bcferrors "github.com/randalmurphal/bimcollab/internal/errors"
	"github.com/randalmurphal/bimcollab/internal/metadata"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the IFC index of a federated model",
		Long: `The IFC index maps each IFC GUID of a federated model to the sub-model
that owns it. Federated imports use it to route components to sub-models.`,
	}
	cmd.AddCommand(newIndexLoadCmd(opts))
	cmd.AddCommand(newIndexShowCmd(opts))
	return cmd
}

func newIndexLoadCmd(opts *rootOptions) *cobra.Command {
	var q metadata.Query

	cmd := &cobra.Command{
		Use:   "load <metadata.json>",
		Short: "Replace the IFC index from a metadata query dump",
		Long: `Replace the IFC index of the current model with the (IFC GUID, sub-model)
pairs found in a metadata query dump. Paths use gjson syntax with one "#"
marking the object list.

Example:
  bcf index load metadata.json --model federation
  bcf index load dump.json --id-path 'objects.#.guid' --model-path 'objects.#.file'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadValidConfig()
			if err != nil {
				return err
			}
			model := cfg.Project.Model
			if model == "" {
				return bcferrors.ErrConfigMissing("project.model")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read metadata: %w", err)
			}
			idx, err := metadata.LoadIndex(data, q, opts.log())
			if err != nil {
				return err
			}

			backend, err := opts.openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			n, err := backend.ReplaceIFCIndex(cmd.Context(), cfg.Project.Namespace, model, idx.Entries)
			if err != nil {
				return err
			}

			p := newPrinter(cmd, opts.quiet)
			if len(idx.Conflicts) > 0 {
				p.warn("%d IFC GUIDs claimed by several models, first kept: %v", len(idx.Conflicts), idx.Conflicts)
			}
			p.summary("Loaded IFC index", [][2]string{
				{"Model", model},
				{"Entries", strconv.Itoa(n)},
				{"Skipped", strconv.Itoa(idx.Skipped)},
				{"Conflicts", strconv.Itoa(len(idx.Conflicts))},
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&q.IDPath, "id-path", metadata.DefaultIDPath, "gjson path of object IFC GUIDs")
	cmd.Flags().StringVar(&q.ModelPath, "model-path", metadata.DefaultModelPath, "gjson path of object sub-models")
	return cmd
}

func newIndexShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the IFC index of the current model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadValidConfig()
			if err != nil {
				return err
			}
			backend, err := opts.openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			entries, err := backend.IFCLookup(cmd.Context(), cfg.Project.Namespace, cfg.Project.Model)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "IFC GUID\tMODEL")
			for _, k := range keys {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, entries[k])
			}
			return tw.Flush()
		},
	}
}
