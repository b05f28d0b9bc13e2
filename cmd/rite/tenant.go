package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/veilworks/rite/internal/db"
	"github.com/veilworks/rite/internal/platform"
	"github.com/veilworks/rite/internal/tenant"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant management commands",
	}

	cmd.AddCommand(newTenantCreateCmd())
	cmd.AddCommand(newTenantListCmd())
	cmd.AddCommand(newTenantShowCmd())
	cmd.AddCommand(newTenantSeedCmd())
	cmd.AddCommand(newTenantPlatformCmd())
	cmd.AddCommand(newTenantChannelCmd())
	return cmd
}

func newTenantCreateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		slug       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := tenant.Create(gormDB, tenant.CreateOpts{Name: name, Slug: slug})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created tenant %s (%s)\n", t.ID, t.Slug)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&name, "name", "", "tenant display name (required)")
	cmd.Flags().StringVar(&slug, "slug", "", "tenant slug used on the command line (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("slug")
	return cmd
}

func newTenantListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tenants, err := tenant.List(gormDB)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tenants) == 0 {
				fmt.Fprintln(out, "No tenants found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSLUG\tNAME\tACTIVE")
			for _, t := range tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", t.ID, t.Slug, truncate(t.Name, 40), t.Active)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}

func newTenantShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <slug>",
		Short: "Show tenant details",
		Long:  "Displays a tenant's platform configuration and channel directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTenantShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}

func runTenantShow(cmd *cobra.Command, configPath, slug string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	t, err := tenant.GetBySlug(gormDB, slug)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %s\n", t.ID)
	fmt.Fprintf(out, "Name:     %s\n", t.Name)
	fmt.Fprintf(out, "Slug:     %s\n", t.Slug)
	fmt.Fprintf(out, "Active:   %t\n", t.Active)

	if t.Platform == nil {
		fmt.Fprintln(out, "\nNo platform configured.")
		return nil
	}

	fmt.Fprintf(out, "\nPlatform: %s", t.Platform.Platform)
	if t.Platform.GuildID != "" {
		fmt.Fprintf(out, " (guild %s)", t.Platform.GuildID)
	}
	if !t.Platform.Active {
		fmt.Fprint(out, " [inactive]")
	}
	fmt.Fprintln(out)

	if len(t.Platform.Channels) == 0 {
		fmt.Fprintln(out, "No channels registered.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PURPOSE\tCHANNEL\tNAME\tVIS\tREAD-ONLY")
	for _, ch := range t.Platform.Channels {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", ch.Purpose, ch.ChannelID, ch.Name, ch.Visibility, ch.ReadOnly)
	}
	w.Flush()
	return nil
}

func newTenantSeedCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "seed <slug>",
		Short: "Seed the canonical release cycle for a tenant",
		Long:  "Installs the canonical stage template and default ritual mappings for a tenant. Safe to re-run; existing rows are updated in place.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTenantSeed(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}

func runTenantSeed(cmd *cobra.Command, configPath, slug string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	t, err := tenant.GetBySlug(gormDB, slug)
	if err != nil {
		return err
	}

	templateID := "tpl-" + t.ID[len("ten-"):]
	tpl, err := db.SeedTemplate(gormDB, t.ID, templateID, "Canonical Release Cycle")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded template %s with %d stages\n", tpl.ID, len(tpl.Stages))

	if err := db.SeedRitualMappings(gormDB, t.ID, tpl.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded default ritual mappings for %s\n", t.Slug)
	return nil
}

func newTenantPlatformCmd() *cobra.Command {
	var (
		configPath string
		platform   string
		guildID    string
		botToken   string
	)

	cmd := &cobra.Command{
		Use:   "platform <slug>",
		Short: "Set a tenant's platform connection",
		Long:  "Creates or replaces the tenant's platform configuration. The channel directory is preserved across token changes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := tenant.GetBySlug(gormDB, args[0])
			if err != nil {
				return err
			}
			cfg, err := tenant.SetPlatform(gormDB, t.ID, tenant.PlatformOpts{
				Platform: platform,
				GuildID:  guildID,
				BotToken: botToken,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Platform %s configured for %s\n", cfg.Platform, t.Slug)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&platform, "platform", "discord", "platform (discord or slack)")
	cmd.Flags().StringVar(&guildID, "guild", "", "guild/workspace ID")
	cmd.Flags().StringVar(&botToken, "token", "", "bot token (required)")
	cmd.MarkFlagRequired("token")
	return cmd
}

func newTenantChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage a tenant's channel directory",
	}

	cmd.AddCommand(newTenantChannelAddCmd())
	cmd.AddCommand(newTenantChannelListCmd())
	cmd.AddCommand(newTenantChannelCheckCmd())
	return cmd
}

func newTenantChannelAddCmd() *cobra.Command {
	var (
		configPath string
		purpose    string
		channelID  string
		name       string
		visibility string
		readOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "add <slug>",
		Short: "Add or replace a channel-directory entry",
		Long:  "Maps a logical channel purpose (signal, process, releases, ...) to a concrete platform channel ID. Re-adding a purpose replaces the entry.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := tenant.GetBySlug(gormDB, args[0])
			if err != nil {
				return err
			}
			ch, err := tenant.AddChannel(gormDB, t.ID, tenant.ChannelOpts{
				Purpose:    purpose,
				ChannelID:  channelID,
				Name:       name,
				Visibility: visibility,
				ReadOnly:   readOnly,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %s registered for purpose %q\n", ch.ChannelID, ch.Purpose)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&purpose, "purpose", "", "logical channel purpose (required)")
	cmd.Flags().StringVar(&channelID, "id", "", "platform channel ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "channel display name")
	cmd.Flags().StringVar(&visibility, "visibility", "", "visibility level (L0-L3)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "channel is read-only between rituals")
	cmd.MarkFlagRequired("purpose")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newTenantChannelCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check <slug>",
		Short: "Verify bot access to every channel in the directory",
		Long:  "Connects the tenant's platform adapter and validates that the bot can see and act on each registered channel. Unreachable channels degrade automation at transition time.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTenantChannelCheck(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}

func runTenantChannelCheck(cmd *cobra.Command, configPath, slug string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	t, err := tenant.GetBySlug(gormDB, slug)
	if err != nil {
		return err
	}
	if t.Platform == nil || !t.Platform.Active {
		return fmt.Errorf("tenant %s has no active platform config", t.Slug)
	}
	if len(t.Platform.Channels) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No channels registered for %s\n", t.Slug)
		return nil
	}

	ctx := context.Background()
	adapter, err := adapterFactory(t.Platform)
	if err != nil {
		return err
	}
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Close()

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PURPOSE\tCHANNEL\tACCESS")
	failed := 0
	for _, ch := range t.Platform.Channels {
		ref := platform.ChannelRef{GuildID: t.Platform.GuildID, ChannelID: ch.ChannelID}
		ok, err := adapter.ValidateAccess(ctx, ref)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(w, "%s\t%s\tERROR: %v\n", ch.Purpose, ch.ChannelID, err)
		case !ok:
			failed++
			fmt.Fprintf(w, "%s\t%s\tDENIED\n", ch.Purpose, ch.ChannelID)
		default:
			fmt.Fprintf(w, "%s\t%s\tOK\n", ch.Purpose, ch.ChannelID)
		}
	}
	w.Flush()

	if failed > 0 {
		return fmt.Errorf("%d of %d channels unreachable", failed, len(t.Platform.Channels))
	}
	fmt.Fprintf(out, "\nAll %d channels reachable.\n", len(t.Platform.Channels))
	return nil
}

func newTenantChannelListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <slug>",
		Short: "List a tenant's channel directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := tenant.GetBySlug(gormDB, args[0])
			if err != nil {
				return err
			}
			channels, err := tenant.ListChannels(gormDB, t.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(channels) == 0 {
				fmt.Fprintf(out, "No channels registered for %s\n", t.Slug)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PURPOSE\tCHANNEL\tNAME\tVIS\tREAD-ONLY")
			for _, ch := range channels {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", ch.Purpose, ch.ChannelID, ch.Name, ch.Visibility, ch.ReadOnly)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}
