package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/bimcollab/internal/bcf"
	"github.com/randalmurphal/bimcollab/internal/issue"
	"github.com/randalmurphal/bimcollab/internal/storage"
	"github.com/randalmurphal/bimcollab/internal/util"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		from   string
		status string
	)

	cmd := &cobra.Command{
		Use:   "export [issue-id...]",
		Short: "Export issues to a BCF archive",
		Long: `Export stored issues of the current model to a BCF 2.1 archive.

With no ids every issue of the model is exported, optionally filtered by
--status. --from exports issues from a YAML file (as written by
'bcf import --dump') instead of the store.

Example:
  bcf export -o review.bcfzip
  bcf export 0c4e2a9d-5b7f-4f1e-9c77-3d2b8e0f6a11 -o one.bcfzip
  bcf export --from issues.yaml -o out.bcfzip --unit mm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadValidConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ns, model := cfg.Project.Namespace, cfg.Project.Model

			backend, err := opts.openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			var issues []*issue.Issue
			if from != "" {
				issues, err = readIssueFile(from)
			} else {
				issues, err = selectIssues(cmd, backend, ns, model, args, issue.Status(status))
			}
			if err != nil {
				return err
			}

			f, err := util.CreatePending(output, 0644)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Abort()
			w := bcf.NewWriter(
				bcf.WithGroupSource(backend),
				bcf.WithWriterLogger(opts.log()),
				bcf.WithWriterConcurrency(cfg.Export.Concurrency),
			)
			res, err := w.Write(ctx, f, issues, bcf.ExportOptions{
				Unit:      cfg.Export.Unit,
				Namespace: ns,
				Model:     model,
			})
			if err != nil {
				return err
			}
			if err := f.Commit(); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			p := newPrinter(cmd, opts.quiet)
			for _, fail := range res.Failures {
				p.fail("%s", fail.Error())
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), exportSummary{
					Output:   output,
					Written:  res.Written,
					Failures: failureMessages(res.Failures),
				})
			}
			abs, _ := filepath.Abs(output)
			p.summary("Exported BCF archive", [][2]string{
				{"Archive", abs},
				{"Issues", strconv.Itoa(len(res.Written))},
				{"Failed", strconv.Itoa(len(res.Failures))},
				{"Unit", cfg.Export.Unit},
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "archive to write (required)")
	cmd.Flags().StringVar(&from, "from", "", "export issues from a YAML file instead of the store")
	cmd.Flags().StringVar(&status, "status", "", "only export issues with this status")
	_ = cmd.MarkFlagRequired("output")
	cmd.MarkFlagsMutuallyExclusive("from", "status")
	return cmd
}

type exportSummary struct {
	Output   string      `json:"output"`
	Written  []uuid.UUID `json:"written"`
	Failures []string    `json:"failures,omitempty"`
}

// selectIssues loads the issues named by ids, or the whole model.
func selectIssues(cmd *cobra.Command, backend storage.Backend, ns, model string, ids []string, status issue.Status) ([]*issue.Issue, error) {
	ctx := cmd.Context()
	if len(ids) == 0 {
		return backend.LoadIssues(ctx, ns, model, status)
	}
	issues := make([]*issue.Issue, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid issue id %q: %w", raw, err)
		}
		iss, err := backend.LoadIssue(ctx, ns, model, id)
		if err != nil {
			return nil, err
		}
		issues = append(issues, iss)
	}
	return issues, nil
}

// readIssueFile reads a YAML list of issues.
func readIssueFile(path string) ([]*issue.Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issues: %w", err)
	}
	var issues []*issue.Issue
	if err := yaml.Unmarshal(data, &issues); err != nil {
		return nil, fmt.Errorf("parse issues %s: %w", path, err)
	}
	return issues, nil
}

// writeIssueFile writes issues as a YAML list.
func writeIssueFile(path string, issues []*issue.Issue) error {
	data, err := yaml.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write issues: %w", err)
	}
	return nil
}

func failureMessages(fs []bcf.ItemFailure) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Error())
	}
	return out
}
