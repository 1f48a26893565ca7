package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/odoohq/orchestrator/internal/model"
	"github.com/odoohq/orchestrator/internal/odoo"
)

func newInstanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Manage Odoo instances",
		Long:  "Register, list, and test the Odoo instances attached to companies.",
	}

	cmd.AddCommand(newInstanceAddCmd())
	cmd.AddCommand(newInstanceListCmd())
	cmd.AddCommand(newInstanceTestCmd())

	return cmd
}

// ---------- instance add ----------

func newInstanceAddCmd() *cobra.Command {
	var (
		companyID int64
		url       string
		database  string
		username  string
		password  string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new Odoo instance",
		Args:  cobra.ExactArgs(1),
		Example: `  orchestrator instance add "Acme production" --company 3 \
    --url https://acme.odoo.com --database acme-prod \
    --username api@acme.com --password secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstanceAdd(args[0], companyID, url, database, username, password)
		},
	}

	cmd.Flags().Int64Var(&companyID, "company", 0, "Owning company ID (required)")
	cmd.Flags().StringVar(&url, "url", "", "Base URL of the Odoo server (required)")
	cmd.Flags().StringVar(&database, "database", "", "Odoo database name (required)")
	cmd.Flags().StringVar(&username, "username", "", "Odoo login (required)")
	cmd.Flags().StringVar(&password, "password", "", "Odoo password or API key (required)")
	cmd.MarkFlagRequired("company")
	cmd.MarkFlagRequired("url")
	cmd.MarkFlagRequired("database")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")

	return cmd
}

func runInstanceAdd(name string, companyID int64, url, database, username, password string) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	if _, err := store.GetCompany(ctx, companyID); err != nil {
		return fmt.Errorf("company %d: %w", companyID, err)
	}

	inst := &model.OdooInstance{
		CompanyID: companyID,
		Name:      name,
		URL:       url,
		Database:  database,
		Username:  username,
		Password:  password,
		IsActive:  true,
	}
	if err := store.CreateInstance(ctx, inst); err != nil {
		return fmt.Errorf("create instance: %w", err)
	}

	fmt.Printf("Registered instance %q (id %d) for company %d\n", inst.Name, inst.ID, companyID)
	fmt.Println("Run 'orchestrator instance test' to verify connectivity.")
	return nil
}

// ---------- instance list ----------

func newInstanceListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all Odoo instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstanceList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runInstanceList(jsonOutput bool) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	instances, err := store.ListInstances(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(instances)
	}

	if len(instances) == 0 {
		fmt.Println("No instances configured. Use 'orchestrator instance add' to register one.")
		return nil
	}

	fmt.Printf("%-5s %-8s %-24s %-36s %-20s\n", "ID", "COMPANY", "NAME", "URL", "DATABASE")
	fmt.Printf("%-5s %-8s %-24s %-36s %-20s\n", "--", "-------", "----", "---", "--------")
	for _, inst := range instances {
		fmt.Printf("%-5d %-8d %-24s %-36s %-20s\n", inst.ID, inst.CompanyID, inst.Name, inst.URL, inst.Database)
	}

	return nil
}

// ---------- instance test ----------

func newInstanceTestCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "test <id>",
		Short: "Test connectivity and credentials of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := parseID(args[0])
			if !ok {
				return fmt.Errorf("invalid instance id %q", args[0])
			}
			return runInstanceTest(id, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "RPC call timeout")

	return cmd
}

func runInstanceTest(id int64, timeout time.Duration) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	inst, err := store.GetInstance(ctx, id)
	if err != nil {
		return fmt.Errorf("instance %d: %w", id, err)
	}

	client := odoo.New(odoo.Config{
		URL:      inst.URL,
		Database: inst.Database,
		Username: inst.Username,
		Password: inst.Password,
		Timeout:  timeout,
	})

	result := client.TestConnection(ctx)
	if result.Success {
		fmt.Printf("OK: connected to %s (server version %s)\n", inst.URL, result.Version)
		return nil
	}
	fmt.Printf("FAILED: %s\n", result.Error)
	return nil
}
