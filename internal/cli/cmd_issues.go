package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/bimcollab/internal/issue"
)

func newIssuesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "issues",
		Aliases: []string{"issue"},
		Short:   "Inspect stored issues",
	}
	cmd.AddCommand(newIssuesListCmd(opts))
	cmd.AddCommand(newIssuesShowCmd(opts))
	cmd.AddCommand(newIssuesDeleteCmd(opts))
	return cmd
}

func newIssuesListCmd(opts *rootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues of the current model",
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

			issues, err := backend.LoadIssues(cmd.Context(), cfg.Project.Namespace, cfg.Project.Model, issue.Status(status))
			if err != nil {
				return err
			}

			if opts.jsonOut {
				rows := make([]issueRow, 0, len(issues))
				for _, iss := range issues {
					rows = append(rows, newIssueRow(iss))
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			if len(issues) == 0 {
				if !opts.quiet {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No issues found.")
				}
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tCREATED\tVIEWPOINTS\tNAME")
			for _, iss := range issues {
				r := newIssueRow(iss)
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.Status, r.Priority, r.Created, r.Viewpoints, r.Name)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status")
	return cmd
}

type issueRow struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Priority   string `json:"priority,omitempty"`
	Created    string `json:"created"`
	Viewpoints int    `json:"viewpoints"`
}

func newIssueRow(iss *issue.Issue) issueRow {
	priority := string(iss.Priority)
	if priority == "" {
		priority = "-"
	}
	return issueRow{
		ID:         iss.ID.String(),
		Name:       iss.Name,
		Status:     string(iss.Status),
		Priority:   priority,
		Created:    iss.Created.UTC().Format("2006-01-02 15:04"),
		Viewpoints: len(iss.Viewpoints),
	}
}

func newIssuesShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <issue-id>",
		Short: "Print an issue as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid issue id %q: %w", args[0], err)
			}
			cfg, err := opts.loadValidConfig()
			if err != nil {
				return err
			}
			backend, err := opts.openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			iss, err := backend.LoadIssue(cmd.Context(), cfg.Project.Namespace, cfg.Project.Model, id)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), iss)
			}
			data, err := yaml.Marshal(iss)
			if err != nil {
				return fmt.Errorf("marshal issue: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newIssuesDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <issue-id>",
		Short: "Delete an issue from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid issue id %q: %w", args[0], err)
			}
			cfg, err := opts.loadValidConfig()
			if err != nil {
				return err
			}
			backend, err := opts.openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			if err := backend.DeleteIssue(cmd.Context(), cfg.Project.Namespace, cfg.Project.Model, id); err != nil {
				return err
			}
			if !opts.quiet {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted issue %s\n", id)
			}
			return nil
		},
	}
}
