package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/tourbook/internal/config"
	"github.com/deppfellow/tourbook/internal/database"
	"github.com/deppfellow/tourbook/internal/handler"
	"github.com/deppfellow/tourbook/internal/lib/email"
	"github.com/deppfellow/tourbook/internal/logger"
	"github.com/deppfellow/tourbook/internal/repository"
	"github.com/deppfellow/tourbook/internal/router"
	"github.com/deppfellow/tourbook/internal/seed"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/deppfellow/tourbook/internal/service"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const DefaultContextTimeout = 30

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tourbook",
		Short:         "Tour booking API and website",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd(), newEmailCmd())
	return cmd
}

// app holds what every command needs: the loaded config and a logger
// that reports to New Relic when a license key is set.
type app struct {
	cfg           *config.Config
	log           zerolog.Logger
	loggerService *logger.LoggerService
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	loggerService := logger.NewLoggerService(cfg.Observability)
	return &app{
		cfg:           cfg,
		log:           logger.NewLoggerWithService(cfg.Observability, loggerService),
		loggerService: loggerService,
	}, nil
}

func (a *app) close() {
	a.loggerService.Shutdown()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
}

func serve(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, a.cfg, &a.log, a.loggerService)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	repos := repository.NewRepositories(srv)
	if err := repos.Registry.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	services, err := service.NewService(srv, repos)
	if err != nil {
		return fmt.Errorf("could not create services: %w", err)
	}

	r, err := router.NewRouter(srv, handler.NewHandlers(srv, services), services)
	if err != nil {
		return fmt.Errorf("could not create router: %w", err)
	}
	srv.SetupHTTPServer(r)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultContextTimeout*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info().Msg("server exited properly")
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Database.Driver != store.DriverPostgres {
				return fmt.Errorf("migrations apply to postgres only, driver is %q", a.cfg.Database.Driver)
			}
			return database.Migrate(cmd.Context(), &a.log, a.cfg)
		},
	}
}

func newSeedCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load or clear the development data set",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "dev-data", "directory holding tours.json, users.json and reviews.json")

	run := func(do func(context.Context, *seed.Seeder) (seed.Result, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			st, db, err := database.OpenStore(ctx, a.cfg, &a.log, a.loggerService)
			if err != nil {
				return err
			}
			defer func() {
				if err := st.Close(ctx); err != nil {
					a.log.Error().Err(err).Msg("failed to close store")
				}
				if db != nil {
					_ = db.Close()
				}
			}()

			repos := repository.New(st)
			if err := repos.Registry.EnsureIndexes(ctx); err != nil {
				return err
			}
			service.NewReviewService(repos).Register()

			res, err := do(ctx, seed.New(repos, &a.log))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tours: %d, users: %d, reviews: %d\n", res.Tours, res.Users, res.Reviews)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "import",
			Short: "Import the data files",
			RunE: run(func(ctx context.Context, s *seed.Seeder) (seed.Result, error) {
				return s.Import(ctx, dir)
			}),
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete every tour, user and review",
			RunE: run(func(ctx context.Context, s *seed.Seeder) (seed.Result, error) {
				return s.Delete(ctx)
			}),
		},
	)
	return cmd
}

func newEmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Work with the transactional email templates",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "preview [template]",
		Short: "Render an email template with sample data to stdout",
		Long:  "Render an email template with sample data to stdout. Without an argument the available templates are listed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range email.Templates() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			html, err := email.Preview(email.Template(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), html)
			return nil
		},
	})
	return cmd
}
