package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/veilworks/rite/internal/ritual"
	"github.com/veilworks/rite/internal/tenant"
)

func newMappingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Ritual mapping commands",
		Long:  "Ritual mappings bind a stage of a tenant's cycle template to the channel automation performed when releases enter or leave that stage.",
	}

	cmd.AddCommand(newMappingCreateCmd())
	cmd.AddCommand(newMappingListCmd())
	cmd.AddCommand(newMappingShowCmd())
	cmd.AddCommand(newMappingUpdateCmd())
	cmd.AddCommand(newMappingDeactivateCmd())
	return cmd
}

func newMappingCreateCmd() *cobra.Command {
	var (
		configPath   string
		tenantSlug   string
		templateID   string
		stageType    string
		purpose      string
		visibility   string
		roles        string
		readOnly     bool
		autoLock     bool
		autoUnlock   bool
		rateLimit    int
		announcement string
		closing      string
		anonymous    bool
		skipAllowed  bool
		duration     int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ritual mapping",
		Long:  "Binds a stage to its channel ritual. At most one active mapping may exist per (tenant, template, stage).",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := tenant.GetBySlug(gormDB, tenantSlug)
			if err != nil {
				return err
			}
			m, err := ritual.Create(gormDB, ritual.CreateOpts{
				TenantID:            t.ID,
				TemplateID:          templateID,
				StageType:           stageType,
				ChannelPurpose:      purpose,
				Visibility:          visibility,
				RequiredRoles:       roles,
				ReadOnly:            readOnly,
				AutoLock:            autoLock,
				AutoUnlock:          autoUnlock,
				RateLimitSeconds:    rateLimit,
				AnnouncementMessage: announcement,
				ClosingMessage:      closing,
				Anonymous:           anonymous,
				SkipAllowed:         skipAllowed,
				DurationHours:       duration,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created mapping %s for stage %s\n", m.ID, m.StageType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "tenant slug (required)")
	cmd.Flags().StringVar(&templateID, "template", "", "cycle template ID (required)")
	cmd.Flags().StringVar(&stageType, "stage", "", "stage name the mapping fires on (required)")
	cmd.Flags().StringVar(&purpose, "purpose", "", "channel purpose the ritual targets")
	cmd.Flags().StringVar(&visibility, "visibility", "", "visibility level (L0-L3)")
	cmd.Flags().StringVar(&roles, "roles", "", "required roles, JSON or comma-separated")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "channel is read-only during the stage")
	cmd.Flags().BoolVar(&autoLock, "auto-lock", false, "lock the channel when the stage ends")
	cmd.Flags().BoolVar(&autoUnlock, "auto-unlock", false, "unlock the channel when the stage begins")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "slow-mode seconds applied on entry (0 = none)")
	cmd.Flags().StringVar(&announcement, "announcement", "", "message posted when the stage begins")
	cmd.Flags().StringVar(&closing, "closing", "", "message posted when the stage ends")
	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "stage activity is anonymous")
	cmd.Flags().BoolVar(&skipAllowed, "skip-allowed", false, "stage may be skipped")
	cmd.Flags().IntVar(&duration, "duration", 0, "nominal stage duration in hours")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("template")
	cmd.MarkFlagRequired("stage")
	return cmd
}

func newMappingListCmd() *cobra.Command {
	var (
		configPath string
		tenantSlug string
		templateID string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ritual mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := tenant.GetBySlug(gormDB, tenantSlug)
			if err != nil {
				return err
			}
			mappings, err := ritual.List(gormDB, t.ID, templateID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(mappings) == 0 {
				fmt.Fprintln(out, "No mappings found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTEMPLATE\tSTAGE\tPURPOSE\tLOCK\tUNLOCK\tRATE\tACTIVE")
			for _, m := range mappings {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t%d\t%t\n",
					m.ID, m.TemplateID, m.StageType, m.ChannelPurpose,
					m.AutoLock, m.AutoUnlock, m.RateLimitSeconds, m.Active)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "tenant slug (required)")
	cmd.Flags().StringVar(&templateID, "template", "", "narrow to one template")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newMappingShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show mapping details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMappingShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}

func runMappingShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	m, err := ritual.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:           %s\n", m.ID)
	fmt.Fprintf(out, "Tenant:       %s\n", m.TenantID)
	fmt.Fprintf(out, "Template:     %s\n", m.TemplateID)
	fmt.Fprintf(out, "Stage:        %s\n", m.StageType)
	fmt.Fprintf(out, "Purpose:      %s\n", m.ChannelPurpose)
	if m.Visibility != "" {
		fmt.Fprintf(out, "Visibility:   %s\n", m.Visibility)
	}
	if m.RequiredRoles != "" {
		fmt.Fprintf(out, "Roles:        %s\n", m.RequiredRoles)
	}
	fmt.Fprintf(out, "Read-only:    %t\n", m.ReadOnly)
	fmt.Fprintf(out, "Auto-lock:    %t\n", m.AutoLock)
	fmt.Fprintf(out, "Auto-unlock:  %t\n", m.AutoUnlock)
	if m.RateLimitSeconds > 0 {
		fmt.Fprintf(out, "Rate limit:   %ds\n", m.RateLimitSeconds)
	}
	if m.DurationHours > 0 {
		fmt.Fprintf(out, "Duration:     %dh\n", m.DurationHours)
	}
	fmt.Fprintf(out, "Active:       %t\n", m.Active)
	if m.AnnouncementMessage != "" {
		fmt.Fprintf(out, "\nAnnouncement:\n%s\n", m.AnnouncementMessage)
	}
	if m.ClosingMessage != "" {
		fmt.Fprintf(out, "\nClosing:\n%s\n", m.ClosingMessage)
	}
	return nil
}

func newMappingUpdateCmd() *cobra.Command {
	var (
		configPath   string
		purpose      string
		rateLimit    int
		autoLock     bool
		autoUnlock   bool
		announcement string
		closing      string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a ritual mapping",
		Long:  "Updates mapping fields. The scope (tenant, template, stage) is immutable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make(map[string]interface{})
			if cmd.Flags().Changed("purpose") {
				updates["channel_purpose"] = purpose
			}
			if cmd.Flags().Changed("rate-limit") {
				updates["rate_limit_seconds"] = rateLimit
			}
			if cmd.Flags().Changed("auto-lock") {
				updates["auto_lock"] = autoLock
			}
			if cmd.Flags().Changed("auto-unlock") {
				updates["auto_unlock"] = autoUnlock
			}
			if cmd.Flags().Changed("announcement") {
				updates["announcement_message"] = announcement
			}
			if cmd.Flags().Changed("closing") {
				updates["closing_message"] = closing
			}
			if len(updates) == 0 {
				return fmt.Errorf("no fields to update; use --purpose, --rate-limit, --auto-lock, --auto-unlock, --announcement, or --closing")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := ritual.Update(gormDB, args[0], updates); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated mapping %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&purpose, "purpose", "", "new channel purpose")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "new slow-mode seconds")
	cmd.Flags().BoolVar(&autoLock, "auto-lock", false, "lock the channel when the stage ends")
	cmd.Flags().BoolVar(&autoUnlock, "auto-unlock", false, "unlock the channel when the stage begins")
	cmd.Flags().StringVar(&announcement, "announcement", "", "new announcement message")
	cmd.Flags().StringVar(&closing, "closing", "", "new closing message")
	return cmd
}

func newMappingDeactivateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a ritual mapping",
		Long:  "Marks a mapping inactive so its stage transitions without automation. The row is kept for audit context.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := ritual.Deactivate(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated mapping %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}
