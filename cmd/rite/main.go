package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/veilworks/rite/internal/config"
	"github.com/veilworks/rite/internal/db"
	"gorm.io/gorm"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rite",
		Short: "Rite — staged release orchestration",
		Long:  "Rite walks album and media releases through their stage cycle and performs the channel rituals each stage calls for.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newTenantCmd())
	cmd.AddCommand(newTemplateCmd())
	cmd.AddCommand(newMappingCmd())
	cmd.AddCommand(newReleaseCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newDigestCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rite %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.DB.Database, err)
	}

	return cfg, gormDB, nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
