package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/prunarr/internal/api"
	"github.com/amaumene/prunarr/internal/controllers"
	"github.com/amaumene/prunarr/internal/models"
	"github.com/amaumene/prunarr/internal/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled removals and serve health, status and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a, runNow)
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "Start a removal run immediately")
	return cmd
}

func serve(parent context.Context, a *app, runNow bool) error {
	logger := a.logger
	logger.WithFields(logrus.Fields{
		"schedule": a.cfg.Schedule,
		"dry_run":  a.cfg.DryRun,
	}).Info("Starting Prunarr")

	granularity, err := models.ParseGranularity(a.cfg.RemovalMode)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(a.movies, a.series, a.cleanup, scheduler.RunOptions{
		Schedule:    a.cfg.Schedule,
		MinDays:     a.cfg.DaysWatched,
		Granularity: granularity,
		Execute: controllers.ExecuteOptions{
			DryRun:             a.cfg.DryRun,
			DeleteFiles:        a.cfg.DeleteFiles,
			AddImportExclusion: a.cfg.AddImportExclusion,
		},
	}, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	server := api.NewServer(a.cfg.ServerPort, sched, a.cache, logger)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	if runNow {
		go func() {
			if _, err := sched.RunOnce(ctx, "startup"); err != nil {
				logger.WithError(err).Error("Startup run failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Prunarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
	case <-parent.Done():
	}

	cancel()
	if err := server.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("Error during server shutdown")
	}
	logger.Info("Prunarr stopped")
	return nil
}
