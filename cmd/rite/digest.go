package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/veilworks/rite/internal/config"
	"github.com/veilworks/rite/internal/digest"
	"github.com/veilworks/rite/internal/platform"
	"github.com/veilworks/rite/internal/tenant"
	"gorm.io/gorm"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Transition digest commands",
		Long:  "The digest summarizes a tenant's stage transitions from the last 24 hours and posts them to a platform channel.",
	}

	cmd.AddCommand(newDigestRunCmd())
	cmd.AddCommand(newDigestPostCmd())
	cmd.AddCommand(newDigestShowCmd())
	return cmd
}

func newDigestRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the digest scheduler",
		Long:  "Blocks, posting the daily digest at each cron fire time until interrupted. Requires digest to be enabled in config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigestRun(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}

func runDigestRun(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.Digest.Enabled {
		return fmt.Errorf("digest is not enabled in %s", configPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	sched, adapter, err := digestScheduler(ctx, cfg, gormDB, cmd)
	if err != nil {
		return err
	}
	defer adapter.Close()

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newDigestPostCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post the daily digest once",
		Long:  "Builds the last 24 hours of transitions and posts them to the configured channel. An empty digest is suppressed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if !cfg.Digest.Enabled {
				return fmt.Errorf("digest is not enabled in %s", configPath)
			}

			ctx := context.Background()
			sched, adapter, err := digestScheduler(ctx, cfg, gormDB, cmd)
			if err != nil {
				return err
			}
			defer adapter.Close()

			if err := sched.Post(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Digest posted.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	return cmd
}

func newDigestShowCmd() *cobra.Command {
	var (
		configPath string
		tenantSlug string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a tenant's daily digest without posting it",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := tenant.GetBySlug(gormDB, tenantSlug)
			if err != nil {
				return err
			}
			report, err := digest.BuildDaily(gormDB, t.ID)
			if err != nil {
				return err
			}
			if report.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "No transitions in the last 24 hours.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Format())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "tenant slug (required)")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

// digestScheduler wires the digest tenant's platform adapter and channel
// into a ready Scheduler. The caller owns closing the returned adapter.
func digestScheduler(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, cmd *cobra.Command) (*digest.Scheduler, platform.Adapter, error) {
	t, err := tenant.GetBySlug(gormDB, cfg.Digest.Tenant)
	if err != nil {
		return nil, nil, err
	}
	if t.Platform == nil || !t.Platform.Active {
		return nil, nil, fmt.Errorf("tenant %s has no active platform config", t.Slug)
	}

	adapter, err := adapterFactory(t.Platform)
	if err != nil {
		return nil, nil, err
	}
	if err := adapter.Connect(ctx); err != nil {
		return nil, nil, err
	}

	sched, err := digest.NewScheduler(digest.SchedulerOpts{
		DB:       gormDB,
		Adapter:  adapter,
		Channel:  platform.ChannelRef{GuildID: t.Platform.GuildID, ChannelID: cfg.Digest.Channel},
		TenantID: t.ID,
		Cron:     cfg.Digest.Cron,
		Out:      cmd.OutOrStdout(),
	})
	if err != nil {
		adapter.Close()
		return nil, nil, err
	}
	return sched, adapter, nil
}
