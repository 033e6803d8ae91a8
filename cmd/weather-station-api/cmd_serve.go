package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-station-api/internal/api/http"
	"github.com/i474232898/weather-station-api/internal/scheduler"
	"github.com/i474232898/weather-station-api/internal/weather"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mirror scheduler and the report API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, engine, status, err := setup()
	if err != nil {
		return err
	}

	// Scheduler that periodically refreshes the local mirror.
	sched := scheduler.New(engine, cfg.SyncInterval)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := newApp()
	httpapi.RegisterRoutes(app, weather.NewRepository(cfg.CacheRoot, cfg.Location), status, sched)

	log.Info().Str("port", cfg.Port).Dur("interval", cfg.SyncInterval).Msg("weather station api starting")
	return listen(cmd.Context(), app, ":"+cfg.Port)
}

// listen serves app on addr until ctx is done, then shuts it down. A listener
// failure is returned immediately.
func listen(ctx context.Context, app *fiber.App, addr string) error {
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(addr)
	}()

	// Wait for termination signal or a listener failure.
	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	return nil
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-station-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-station-api",
		})
	})
	return app
}
