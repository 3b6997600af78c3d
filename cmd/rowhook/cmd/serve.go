package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/rowhook/internal/config"
	"github.com/kursadbilgin/rowhook/internal/handler"
	"github.com/kursadbilgin/rowhook/internal/observability"
	"github.com/kursadbilgin/rowhook/internal/service"
	"github.com/kursadbilgin/rowhook/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API that accepts runs and reports their history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	d, err := openDeps(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer d.Close()

	metrics := observability.NewMetrics()

	pipeline, journal, err := d.newPipeline(metrics)
	if err != nil {
		return err
	}

	runs, err := service.NewRunService(d.runs, pipeline, d.logger)
	if err != nil {
		return err
	}

	app, err := newServer(d, runs, metrics)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.logger.Info("rowhook api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		d.logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			d.logger.Error("http server shutdown failed", zap.Error(err))
		}

		runs.Wait()
		if journal != nil {
			journal.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newServer(d *deps, runs *service.RunService, metrics *observability.Metrics) (*fiber.App, error) {
	if runs == nil {
		return nil, fmt.Errorf("run service is required")
	}

	app := fiber.New(fiber.Config{
		AppName:               "rowhook",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(d.logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, d.sqlDB, d.rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	var attempts handler.AttemptLister
	if d.attempts != nil {
		attempts = d.attempts
	}
	if err := handler.RegisterRunRoutes(app, runs, attempts); err != nil {
		return nil, fmt.Errorf("failed to register run routes: %w", err)
	}

	return app, nil
}
