package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kaizen/db"
	"kaizen/handlers"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "kaizen",
		Short:         "kAIzen Systems site: newsletter, technique library and billing sync",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dispatchWelcomeCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var runMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log.WithFields(map[string]interface{}{
				"auth":      cfg.Features.AuthEnabled,
				"billing":   cfg.Features.BillingEnabled,
				"analytics": cfg.Features.AnalyticsEnabled,
				"cache":     cfg.Features.CacheEnabled,
				"scheduler": cfg.Features.WelcomeSchedulerEnabled,
			}).Info("features loaded")

			if runMigrations {
				if err := db.RunMigrations(cfg.Database.URL); err != nil {
					return err
				}
				log.Info("database schema up to date")
			}

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			router, err := handlers.NewRouter(a.deps())
			if err != nil {
				return fmt.Errorf("failed to build router: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Features.WelcomeSchedulerEnabled {
				if a.welcome == nil {
					log.Warn("welcome scheduler enabled but no mailer configured, not starting")
				} else {
					go a.runWelcomeTicker(ctx)
				}
			}
			go a.runLimiterSweep(ctx)

			srv := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", srv.Addr).Info("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&runMigrations, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

func dispatchWelcomeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch-welcome",
		Short: "Send one batch of pending welcome emails and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.welcome == nil {
				return errors.New("SENDGRID_API_KEY not set")
			}

			report, err := a.welcome.Run(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL environment variable not set")
			}

			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			switch direction {
			case "down":
				if err := db.RollbackMigrations(cfg.Database.URL); err != nil {
					return err
				}
				log.Info("rolled back one migration")
			case "version":
				version, dirty, err := db.MigrationVersion(cfg.Database.URL)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%v)\n", version, dirty)
			default:
				if err := db.RunMigrations(cfg.Database.URL); err != nil {
					return err
				}
				log.Info("database schema up to date")
			}
			return nil
		},
	}
}
