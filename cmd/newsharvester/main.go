package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NewsHarvester/internal/app"
	"NewsHarvester/internal/config"
	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/logging"
	"NewsHarvester/internal/usecase"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "newsharvester",
		Short:         "Harvest news listings into a spreadsheet and review them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if cfgFile != "" {
				return os.Setenv(config.PathEnv, cfgFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides $"+config.PathEnv+")")

	root.AddCommand(runCommand(), reviewCommand(), serveCommand(), scheduleCommand())
	return root
}

func runCommand() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl, ingest and review once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := usecase.ParseMode(mode)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				report, err := a.Run(ctx, m)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.Message())
				return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(usecase.ModeIncremental), "initial (reset sheets) or incremental")
	return cmd
}

func reviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Classify unpublished articles once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				result, err := a.Review(ctx)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			})
		},
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the HTTP trigger and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				return a.Serve(ctx)
			})
		},
	}
}

func scheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run incremental harvests on the configured cron expression",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				return a.Schedule(ctx)
			})
		},
	}
}

// withApp loads configuration, builds the application and logs a failure
// with the set/unset state of every credential key.
func withApp(ctx context.Context, fn func(context.Context, *app.Application) error) error {
	cfg, err := config.Load()
	if err != nil {
		logging.New("").Error("load config", "error", err)
		return err
	}
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			logger.Error("invalid configuration", "problems", cfgErr.Problems, "config", cfgErr.KeyStates())
		} else {
			logger.Error("application setup failed", "error", err, "config", cfg.KeyStates())
		}
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	if err := fn(ctx, application); err != nil {
		logger.Error("application stopped", "error", err, "config", cfg.KeyStates())
		return err
	}
	return nil
}
