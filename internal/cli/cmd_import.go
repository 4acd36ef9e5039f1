package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/bimcollab/internal/bcf"
	bcferrors "github.com/randalmurphal/bimcollab/internal/errors"
	"github.com/randalmurphal/bimcollab/internal/issue"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var (
		federated bool
		dryRun    bool
		dump      string
	)

	cmd := &cobra.Command{
		Use:   "import <archive|glob>...",
		Short: "Import BCF archives into the store",
		Long: `Import one or more BCF 2.1 archives into the current model.

Arguments may be glob patterns, including "**". Object groups found in
viewpoints are stored and linked to their viewpoints. For a federated model
(--federated or project.federated) component ids are resolved to sub-models
through the IFC index loaded with 'bcf index load'.

Example:
  bcf import review.bcfzip
  bcf import 'inbox/**/*.bcfzip' --dry-run --dump issues.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadValidConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ns, model := cfg.Project.Namespace, cfg.Project.Model
			federated = federated || cfg.Project.Federated
			if federated && model == "" {
				return bcferrors.ErrConfigMissing("project.model")
			}

			archives, err := expandArchives(args)
			if err != nil {
				return err
			}

			backend, err := opts.openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			importOpts := bcf.ImportOptions{
				Namespace:    ns,
				DefaultModel: model,
				Federated:    federated,
				Unit:         cfg.Export.Unit,
				User:         cfg.Importer(),
			}
			if federated {
				if importOpts.IDToModel, err = backend.IFCLookup(ctx, ns, model); err != nil {
					return err
				}
			}

			reader := bcf.NewReader(
				bcf.WithReaderLogger(opts.log()),
				bcf.WithReaderConcurrency(cfg.Import.Concurrency),
				bcf.WithMaxEntrySize(cfg.Import.MaxEntrySize),
				bcf.WithIgnore(cfg.Import.Ignore...),
			)

			p := newPrinter(cmd, opts.quiet)
			var (
				all        []*issue.Issue
				failed     int
				unresolved = make(map[string]bool)
			)
			for _, archive := range archives {
				res, err := reader.ReadFile(ctx, archive, importOpts)
				if err != nil {
					return err
				}
				for _, f := range res.Failures {
					p.fail("%s: %s", archive, f.Error())
				}
				for _, w := range res.Warnings {
					p.warn("%s: %s", archive, w.Error())
				}
				for _, id := range res.Unresolved {
					unresolved[id] = true
				}
				failed += len(res.Failures)
				all = append(all, res.Issues...)
			}
			if len(unresolved) > 0 {
				ids := make([]string, 0, len(unresolved))
				for id := range unresolved {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				p.warn("%d component ids not in the IFC index of %s: %v", len(ids), model, ids)
			}

			if dump != "" {
				if err := writeIssueFile(dump, all); err != nil {
					return err
				}
			}
			if !dryRun {
				thumbErrs, err := persistImported(ctx, backend, thumbnailStore{root: opts.dir}, ns, model, all)
				if err != nil {
					return err
				}
				for _, err := range thumbErrs {
					p.warn("%s", err)
				}
			}

			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), importSummary{
					Archives:   archives,
					Imported:   len(all),
					Failed:     failed,
					Unresolved: len(unresolved),
					DryRun:     dryRun,
				})
			}
			title := "Imported BCF archives"
			if dryRun {
				title = "Dry run, nothing stored"
			}
			p.summary(title, [][2]string{
				{"Archives", strconv.Itoa(len(archives))},
				{"Issues", strconv.Itoa(len(all))},
				{"Failed", strconv.Itoa(failed)},
				{"Unresolved", strconv.Itoa(len(unresolved))},
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&federated, "federated", false, "resolve component ids through the IFC index")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "read archives without storing anything")
	cmd.Flags().StringVar(&dump, "dump", "", "write the imported issues to a YAML file")
	return cmd
}

type importSummary struct {
	Archives   []string `json:"archives"`
	Imported   int      `json:"imported"`
	Failed     int      `json:"failed"`
	Unresolved int      `json:"unresolved"`
	DryRun     bool     `json:"dry_run,omitempty"`
}

// expandArchives resolves glob arguments. Plain paths pass through so a
// missing file surfaces as a read error.
func expandArchives(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, arg := range args {
		if !hasMeta(arg) {
			add(arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no archives match %q", arg)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func hasMeta(p string) bool {
	for _, r := range p {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
