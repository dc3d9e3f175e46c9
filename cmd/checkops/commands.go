package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkops/config"
	"checkops/core/alerts"
	"checkops/core/appbootstrap"
	"checkops/core/utils"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "checkops",
		Short:         "Property checklist workflow service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the configured alert source",
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE:  runMigrate,
	}
	publishAlertCmd = &cobra.Command{
		Use:   "publish-alert",
		Short: "Append a surveillance alert to the configured Redis stream",
		RunE:  runPublishAlert,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	alertFlags alerts.Alert
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", envOr("CHECKOPS_CONFIG", "config.yaml"), "path to the YAML config file")

	publishAlertCmd.Flags().StringVar(&alertFlags.TenantID, "tenant", "", "tenant id")
	publishAlertCmd.Flags().StringVar(&alertFlags.AlertID, "alert-id", "", "alert id, unique per tenant")
	publishAlertCmd.Flags().Int64Var(&alertFlags.PropertyID, "property", 0, "property id")
	publishAlertCmd.Flags().StringVar(&alertFlags.CameraID, "camera", "", "camera id, resolved to a property when --property is not set")
	publishAlertCmd.Flags().StringVar(&alertFlags.Category, "category", "", "alert category, e.g. fire or intrusion")
	publishAlertCmd.Flags().StringVar(&alertFlags.Severity, "severity", "", "alert severity")
	_ = publishAlertCmd.MarkFlagRequired("tenant")
	_ = publishAlertCmd.MarkFlagRequired("alert-id")
	_ = publishAlertCmd.MarkFlagRequired("category")

	rootCmd.AddCommand(serveCmd, migrateCmd, publishAlertCmd, versionCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadRuntime() (*config.AppConfig, *utils.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.NewLoggerWithConfig(cfg.Log.Level, cfg.Log.Format, "checkops")
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return appbootstrap.Run(ctx, cfg, logger)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()
	return appbootstrap.Migrate(cmd.Context(), cfg, logger)
}

func runPublishAlert(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	alert := alertFlags
	alert.CreatedAt = time.Now().UTC()
	id, err := alerts.PublishAlert(ctx, rdb, cfg.Alerts.Stream, alert)
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
