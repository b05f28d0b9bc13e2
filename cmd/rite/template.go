package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/veilworks/rite/internal/release"
)

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Release cycle template commands",
	}

	cmd.AddCommand(newTemplateCreateCmd())
	cmd.AddCommand(newTemplateListCmd())
	return cmd
}

func newTemplateCreateCmd() *cobra.Command {
	var (
		configPath string
		tenantSlug string
		name       string
		stages     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a custom release cycle template",
		Long:  "Defines a custom stage sequence for a tenant. The sequence must use known stage names, contain no duplicates, start at Draft, and end at Archived.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			for _, s := range strings.Split(stages, ",") {
				if s = strings.TrimSpace(s); s != "" {
					names = append(names, s)
				}
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tpl, err := release.CreateTemplate(gormDB, tenantSlug, release.TemplateOpts{
				Name:   name,
				Stages: names,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created template %s with %d stages\n", tpl.ID, len(tpl.Stages))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "tenant slug (required)")
	cmd.Flags().StringVar(&name, "name", "", "template name (required)")
	cmd.Flags().StringVar(&stages, "stages", "", "comma-separated stage names from Draft to Archived (required)")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("stages")
	return cmd
}

func newTemplateListCmd() *cobra.Command {
	var (
		configPath string
		tenantSlug string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			templates, err := release.ListTemplates(gormDB, tenantSlug)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(templates) == 0 {
				fmt.Fprintln(out, "No templates found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE\tSTAGES")
			for _, tpl := range templates {
				names := make([]string, 0, len(tpl.Stages))
				for _, st := range tpl.Stages {
					names = append(names, st.Name)
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
					tpl.ID, truncate(tpl.Name, 30), tpl.Active, strings.Join(names, " → "))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rite.yaml", "path to Rite config file")
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "tenant slug (required)")
	cmd.MarkFlagRequired("tenant")
	return cmd
}
