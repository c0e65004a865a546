package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/alger/internal/application"
	"github.com/ngoclaw/alger/internal/infrastructure/config"
	"github.com/ngoclaw/alger/internal/infrastructure/logger"
)

const (
	appName    = "alger-gateway"
	appVersion = "0.1.0"
)

func main() {
	root := &cobra.Command{
		Use:   "gateway",
		Short: "Alger pipeline execution gateway",
	}

	serve := serveCmd()
	// Running the binary with no subcommand behaves like "serve".
	root.RunE = serve.RunE
	root.AddCommand(serve, migrateCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket gateway (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger("json", "info")
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := config.Load()
			if err != nil {
				log.Fatal("failed to load configuration", zap.Error(err))
			}

			log.Info("starting alger",
				zap.String("name", appName),
				zap.String("version", appVersion),
			)

			app, err := application.NewApp(cfg, log)
			if err != nil {
				log.Fatal("failed to initialize application", zap.Error(err))
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := app.Start(ctx); err != nil {
				log.Fatal("failed to start application", zap.Error(err))
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			sig := <-quit
			log.Info("received shutdown signal", zap.String("signal", sig.String()))

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := app.Stop(shutdownCtx); err != nil {
				log.Error("error during shutdown", zap.Error(err))
				return err
			}
			log.Info("application stopped successfully")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply GORM auto-migration, seed the default admin/demo pipeline, and optionally load an extra fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger("console", "info")
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := config.Load()
			if err != nil {
				log.Fatal("failed to load configuration", zap.Error(err))
			}

			// NewApp runs autoMigrate and persistence.SeedDefaults (admin
			// user + "demo" pipeline) as part of construction.
			app, err := application.NewApp(cfg, log)
			if err != nil {
				log.Fatal("failed to initialize application", zap.Error(err))
			}
			log.Info("database migrated and seeded", zap.String("type", cfg.Database.Type))

			if seedPath != "" {
				if err := seedPipeline(context.Background(), app, seedPath, log); err != nil {
					log.Fatal("failed to seed pipeline", zap.Error(err))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "path to an additional pipeline YAML fixture to seed after migration")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	}
}

func newLogger(format, level string) (*zap.Logger, error) {
	return logger.NewLogger(logger.Config{
		Level:      level,
		Format:     format,
		OutputPath: "stdout",
	})
}
