package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odoohq/orchestrator/internal/server"
	"github.com/odoohq/orchestrator/internal/service"
)

const banner = `
  ___  ___  ___ _  _ ___ ___ _____ ___    _ _____ ___  ___
 / _ \| _ \/ __| || | __/ __|_   _| _ \  /_\_   _/ _ \| _ \
| (_) |   / (__| __ | _|\__ \ | | |   / / _ \| || (_) |   /
 \___/|_|_\\___|_||_|___|___/ |_| |_|_\/_/ \_\_| \___/|_|_\
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator API server",
		Long:  "Start the HTTP server that manages tenants and proxies Odoo model operations.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging, CORS *)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	switch viper.GetString("logging.level") {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var logger *slog.Logger
	if viper.GetString("logging.format") == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}

	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("init config store: %w", err)
	}
	defer store.Close()
	logger.Info("config store initialized", "path", resolveDataDir())

	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		jwtSecret = "orchestrator-dev-secret-change-me"
		logger.Warn("auth.jwt_secret not set, using insecure development default")
	}
	authSvc := service.NewAuthService(store, jwtSecret)

	hasAdmin, err := store.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: orchestrator admin create")
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	if origins := viper.GetStringSlice("server.cors.origins"); len(origins) > 0 && !dev {
		srvCfg.CORSOrigins = origins
	}
	if rpm := viper.GetInt("server.requests_per_minute"); rpm > 0 {
		srvCfg.RequestsPerMin = rpm
	}
	if d, err := time.ParseDuration(viper.GetString("odoo.call_timeout")); err == nil && d > 0 {
		srvCfg.OdooCallTimeout = d
	}
	if d, err := time.ParseDuration(viper.GetString("server.shutdown_timeout")); err == nil && d > 0 {
		srvCfg.ShutdownTimeout = d
	}

	srv := server.New(srvCfg, store, authSvc, nil, logger)

	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, port)
	fmt.Println()

	return srv.ListenAndServe()
}
