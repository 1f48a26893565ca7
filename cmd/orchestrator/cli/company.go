package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odoohq/orchestrator/internal/model"
)

func newCompanyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage companies",
		Long:  "Create and list the tenant companies managed by the orchestrator.",
	}

	cmd.AddCommand(newCompanyAddCmd())
	cmd.AddCommand(newCompanyListCmd())

	return cmd
}

// ---------- company add ----------

func newCompanyAddCmd() *cobra.Command {
	var slug string

	cmd := &cobra.Command{
		Use:     "add <name>",
		Short:   "Add a new company",
		Args:    cobra.ExactArgs(1),
		Example: `  orchestrator company add "Acme Corp" --slug acme`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompanyAdd(args[0], slug)
		},
	}

	cmd.Flags().StringVar(&slug, "slug", "", "URL-safe identifier (derived from the name if omitted)")

	return cmd
}

func runCompanyAdd(name, slug string) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	if slug == "" {
		slug = model.Slugify(name)
	}

	company := &model.Company{Name: name, Slug: slug, IsActive: true}
	if err := store.CreateCompany(context.Background(), company); err != nil {
		return fmt.Errorf("create company: %w", err)
	}

	fmt.Printf("Created company %q (id %d, slug %q)\n", company.Name, company.ID, company.Slug)
	return nil
}

// ---------- company list ----------

func newCompanyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompanyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runCompanyList(jsonOutput bool) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	companies, err := store.ListCompanies(context.Background())
	if err != nil {
		return fmt.Errorf("list companies: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(companies)
	}

	if len(companies) == 0 {
		fmt.Println("No companies configured. Use 'orchestrator company add' to create one.")
		return nil
	}

	fmt.Printf("%-5s %-28s %-20s %-8s\n", "ID", "NAME", "SLUG", "ACTIVE")
	fmt.Printf("%-5s %-28s %-20s %-8s\n", "--", "----", "----", "------")
	for _, c := range companies {
		active := "yes"
		if !c.IsActive {
			active = "no"
		}
		fmt.Printf("%-5d %-28s %-20s %-8s\n", c.ID, c.Name, c.Slug, active)
	}

	return nil
}
