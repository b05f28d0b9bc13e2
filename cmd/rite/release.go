package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/veilworks/rite/internal/platform"
	"github.com/veilworks/rite/internal/release"
	"github.com/veilworks/rite/internal/tenant"
)

func newReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release management commands",
	}

	cmd.AddCommand(newReleaseCreateCmd())
	cmd.AddCommand(newReleaseListCmd())
	cmd.AddCommand(newReleaseShowCmd())
	cmd.AddCommand(newReleaseAdvanceCmd())
	cmd.AddCommand(newReleaseHistoryCmd())
	cmd.AddCommand(newReleaseNextCmd())
	return cmd
}

func newReleaseCreateCmd() *cobra.Command {
	var (
		configPath  string
		tenantSlug  string
		key         string
		title       string
		description string
		templateID  string
		scheduled   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new release",
		Long:  "Instantiates a release at Draft with one pending execution per template stage. The key must be unique within the tenant.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := release.CreateOpts{
				Key:         key,
				Title:       title,
				Description: description,
				TemplateID:  templateID,
			}
			if scheduled != "" {
				ts, err := time.Parse(time.RFC3339, scheduled)
				if err != nil {
					return fmt.Errorf("parse --scheduled: %w", err)
				}
				opts.ScheduledStartAt = &ts
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			rel, err := release.Create(gormDB, tenantSlug, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created release %s (%s)\n", rel.ID, rel.Key)
			fmt.Fprintf(out, "Stage: %s\n", rel.CurrentStage)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "tenant slug (required)")
	cmd.Flags().StringVar(&key, "key", "", "tenant-unique release key, e.g. S1E1 (required)")
	cmd.Flags().StringVar(&title, "title", "", "release title (required)")
	cmd.Flags().StringVar(&description, "description", "", "detailed description")
	cmd.Flags().StringVar(&templateID, "template", "", "cycle template ID (defaults to the tenant's active template)")
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "scheduled start, RFC 3339")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newReleaseListCmd() *cobra.Command {
	var (
		configPath string
		tenantSlug string
		status     string
		stageName  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			filters := release.ListFilters{Status: status, Stage: stageName}
			if tenantSlug != "" {
				t, err := tenant.GetBySlug(gormDB, tenantSlug)
				if err != nil {
					return err
				}
				filters.TenantID = t.ID
			}

			releases, err := release.List(gormDB, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(releases) == 0 {
				fmt.Fprintln(out, "No releases found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKEY\tTITLE\tSTAGE\tSTATUS")
			for _, rel := range releases {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rel.ID, rel.Key, truncate(rel.Title, 40), rel.CurrentStage, rel.Status)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "filter by tenant slug")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (Draft, Scheduled, Archived)")
	cmd.Flags().StringVar(&stageName, "stage", "", "filter by current stage")
	return cmd
}

func newReleaseShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show release details",
		Long:  "Displays a release with its per-stage execution state and allowed next stages.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReleaseShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}

func runReleaseShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	rel, err := release.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", rel.ID)
	fmt.Fprintf(out, "Key:       %s\n", rel.Key)
	fmt.Fprintf(out, "Title:     %s\n", rel.Title)
	fmt.Fprintf(out, "Tenant:    %s\n", rel.TenantID)
	fmt.Fprintf(out, "Template:  %s\n", rel.TemplateID)
	fmt.Fprintf(out, "Stage:     %s\n", rel.CurrentStage)
	fmt.Fprintf(out, "Status:    %s\n", rel.Status)
	if rel.ScheduledStartAt != nil {
		fmt.Fprintf(out, "Scheduled: %s\n", rel.ScheduledStartAt.Format("2006-01-02 15:04:05"))
	}
	if rel.StartedAt != nil {
		fmt.Fprintf(out, "Started:   %s\n", rel.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if rel.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", rel.Description)
	}

	if next, err := release.NextStages(gormDB, rel.ID); err == nil && len(next) > 0 {
		names := make([]string, 0, len(next))
		for _, s := range next {
			names = append(names, s.String())
		}
		fmt.Fprintf(out, "\nNext stages: %s\n", strings.Join(names, ", "))
	}

	if len(rel.Executions) > 0 {
		fmt.Fprintln(out, "\nStages:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  STAGE\tSTATUS\tSTARTED\tCOMPLETED")
		for _, ex := range rel.Executions {
			started, completed := "-", "-"
			if ex.StartedAt != nil {
				started = ex.StartedAt.Format("2006-01-02 15:04")
			}
			if ex.CompletedAt != nil {
				completed = ex.CompletedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", ex.StageName, ex.Status, started, completed)
		}
		w.Flush()
	}
	return nil
}

func newReleaseAdvanceCmd() *cobra.Command {
	var (
		configPath string
		notes      string
		noAutomate bool
	)

	cmd := &cobra.Command{
		Use:   "advance <id> <stage>",
		Short: "Advance a release to the next stage",
		Long: `Moves a release to the target stage, running the configured channel
rituals for the departing and arriving stages. Automation failures degrade
the transition but never block it; the audit row records what succeeded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReleaseAdvance(cmd, configPath, args[0], args[1], notes, noAutomate)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&notes, "notes", "", "operator notes recorded on the audit row")
	cmd.Flags().BoolVar(&noAutomate, "no-automation", false, "skip platform automation for this transition")
	return cmd
}

func runReleaseAdvance(cmd *cobra.Command, configPath, id, target, notes string, noAutomate bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	var provider platform.Provider
	if !noAutomate {
		pool, err := platform.NewPool(adapterFactory)
		if err != nil {
			return err
		}
		defer pool.Close()
		provider = pool
	}

	orch, err := release.NewOrchestrator(release.OrchestratorOpts{
		DB:          gormDB,
		Provider:    provider,
		CallTimeout: time.Duration(cfg.Automation.CallTimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}

	res, err := orch.Advance(context.Background(), id, target, notes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Advanced %s: %s -> %s\n", res.Release.Key, res.Transition.FromStage, res.Transition.ToStage)
	if len(res.Automation.Opened) > 0 {
		fmt.Fprintf(out, "Opened:   %s\n", strings.Join(res.Automation.Opened, ", "))
	}
	if len(res.Automation.Locked) > 0 {
		fmt.Fprintf(out, "Locked:   %s\n", strings.Join(res.Automation.Locked, ", "))
	}
	for _, d := range res.Automation.Degraded {
		fmt.Fprintf(out, "Degraded: %s\n", d)
	}
	return nil
}

func newReleaseHistoryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show a release's transition history",
		Long:  "Lists the append-only audit trail of stage transitions, oldest first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			transitions, err := release.History(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(transitions) == 0 {
				fmt.Fprintf(out, "No transitions for %s\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tFROM\tTO\tREASON\tDEGRADED")
			for _, tr := range transitions {
				degraded := "-"
				if tr.Degraded != "" {
					degraded = tr.Degraded
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					tr.OccurredAt.Format("2006-01-02 15:04:05"), tr.FromStage, tr.ToStage, tr.Reason, truncate(degraded, 50))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}

func newReleaseNextCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "next <id>",
		Short: "Show a release's allowed next stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			next, err := release.NextStages(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(next) == 0 {
				fmt.Fprintln(out, "Terminal stage; no transitions available.")
				return nil
			}
			for _, s := range next {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}
