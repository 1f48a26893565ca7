package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odoohq/orchestrator/internal/model"
	"github.com/odoohq/orchestrator/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke API keys used to authenticate against the orchestrator REST API.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		name      string
		companyID int64
		scopes    []string
		perMin    int
		perHour   int
		perDay    int
		expiresIn string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key. The raw key is shown once and cannot be retrieved again.",
		Example: `  orchestrator key create --name "CI pipeline" --scopes read:companies,read:projects
  orchestrator key create --name "Acme integration" --company 3 --scopes "*" --per-minute 120`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(name, companyID, scopes, perMin, perHour, perDay, expiresIn)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human-readable name for the key (required)")
	cmd.Flags().Int64Var(&companyID, "company", 0, "Restrict the key to one company")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "Scopes to grant (default: wildcard)")
	cmd.Flags().IntVar(&perMin, "per-minute", 0, "Requests allowed per minute (0 = unlimited)")
	cmd.Flags().IntVar(&perHour, "per-hour", 0, "Requests allowed per hour (0 = unlimited)")
	cmd.Flags().IntVar(&perDay, "per-day", 0, "Requests allowed per day (0 = unlimited)")
	cmd.Flags().StringVar(&expiresIn, "expires-in", "", "Key lifetime, e.g. 720h (default: never)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runKeyCreate(name string, companyID int64, scopes []string, perMin, perHour, perDay int, expiresIn string) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	opts := service.CreateKeyOptions{
		Scopes:             scopes,
		RateLimitPerMinute: perMin,
		RateLimitPerHour:   perHour,
		RateLimitPerDay:    perDay,
	}
	if companyID > 0 {
		if _, err := store.GetCompany(ctx, companyID); err != nil {
			return fmt.Errorf("company %d: %w", companyID, err)
		}
		opts.CompanyID = &companyID
	}
	if expiresIn != "" {
		d, err := time.ParseDuration(expiresIn)
		if err != nil {
			return fmt.Errorf("parse --expires-in: %w", err)
		}
		exp := time.Now().UTC().Add(d)
		opts.ExpiresAt = &exp
	}

	authSvc := service.NewAuthService(store, "")
	rawKey, key, err := authSvc.CreateAPIKey(ctx, name, opts)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:    %s\n", rawKey)
	fmt.Printf("  Name:   %s\n", key.Name)
	fmt.Printf("  Scopes: %s\n", strings.Join(key.Scopes, ","))
	if key.CompanyID != nil {
		fmt.Printf("  Company: %d\n", *key.CompanyID)
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	keys, err := store.ListAPIKeys(context.Background())
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	type keyRow struct {
		ID      int64  `json:"id"`
		Prefix  string `json:"prefix"`
		Name    string `json:"name"`
		Scopes  string `json:"scopes"`
		Company string `json:"company"`
		Status  string `json:"status"`
	}

	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		company := "global"
		if k.CompanyID != nil {
			company = fmt.Sprintf("%d", *k.CompanyID)
		}
		status := "active"
		switch {
		case k.Revoked():
			status = "revoked"
		case k.Expired(time.Now().UTC()):
			status = "expired"
		}
		rows[i] = keyRow{
			ID:      k.ID,
			Prefix:  k.KeyPrefix,
			Name:    k.Name,
			Scopes:  strings.Join(k.Scopes, ","),
			Company: company,
			Status:  status,
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API keys configured. Use 'orchestrator key create' to create one.")
		return nil
	}

	fmt.Printf("%-5s %-16s %-24s %-28s %-8s %-8s\n", "ID", "PREFIX", "NAME", "SCOPES", "COMPANY", "STATUS")
	fmt.Printf("%-5s %-16s %-24s %-28s %-8s %-8s\n", "--", "------", "----", "------", "-------", "------")
	for _, k := range rows {
		fmt.Printf("%-5d %-16s %-24s %-28s %-8s %-8s\n", k.ID, k.Prefix, k.Name, k.Scopes, k.Company, k.Status)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <prefix>",
		Short: "Revoke an API key by its prefix",
		Long:  "Disable an API key, preventing any further authenticated requests using that key. The record is kept for audit.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(prefix string) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	keys, err := store.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	var matched *model.APIKey
	for i := range keys {
		if strings.HasPrefix(keys[i].KeyPrefix, prefix) {
			matched = &keys[i]
			break
		}
	}
	if matched == nil {
		return fmt.Errorf("no API key found with prefix %q", prefix)
	}

	if _, err := store.RevokeAPIKey(ctx, matched.ID); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key with prefix %q\n", matched.KeyPrefix)
	return nil
}
