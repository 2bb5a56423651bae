package main

import (
	"fmt"
	"os"

	"github.com/gitsby/yarg/pkg/config"
	"github.com/gitsby/yarg/pkg/server"
	"github.com/gitsby/yarg/pkg/services/engine"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the report extraction web server",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to the yarg config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}

	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	e, err := engine.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create extraction engine: %w", err)
	}
	defer e.Close()

	ctrl, err := e.Controller()
	if err != nil {
		return fmt.Errorf("failed to open reports: %w", err)
	}

	logger.Info().Msgf("Configuration found at `%s` successfully loaded.", cfgPath)
	logger.Info().Strs("backends", e.Loaders.Kinds()).Msg("backends registered")
	names, _ := ctrl.ListReports(ctx)
	for _, name := range names {
		logger.Info().Msgf("Report: `%s`", name)
	}

	return server.NewWebAPI(logger, server.Config{
		Addr:           cfg.Server.Addr,
		RequestTimeout: cfg.Server.RequestTimeout,
		Dependencies:   server.Dependencies{Reports: ctrl},
	}).Start()
}
