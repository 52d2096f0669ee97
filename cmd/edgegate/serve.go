package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/avelinc/edgegate/internal/di"
	"github.com/avelinc/edgegate/internal/gate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the edgegate gateway",
	Long: `Start the gateway that routes requests on the listen port to backend
services per the routing document, serves the admin API, and hot-reloads
the document when the sync subsystem rewrites it.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	container := di.NewContainer(configPath())
	defer func() {
		if err := container.Shutdown(); err != nil {
			log.Error().Err(err).Msg("container shutdown error")
		}
	}()

	loggerSvc, err := di.Invoke[*di.LoggerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize logger")
		return err
	}
	log.Logger = *loggerSvc.Logger
	zerolog.DefaultContextLogger = loggerSvc.Logger

	gateSvc, err := di.Invoke[*di.GateService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to create startup gate")
		return err
	}

	// Hold for the sync restore before opening the store so the restored
	// document, not the bootstrap fallback, is what gets loaded. Timeout
	// fails open; only an interrupt aborts the start.
	gateCtx, stopGate := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = waitForSync(gateCtx, gateSvc.Gate)
	stopGate()
	if err != nil {
		return err
	}

	storeSvc, err := di.Invoke[*di.StoreService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to open rule store")
		return err
	}

	watcherSvc, err := di.Invoke[*di.WatcherService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to create document watcher")
		return err
	}

	serverSvc, err := di.Invoke[*di.ServerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to create server")
		return err
	}
	server := serverSvc.Server

	// Watcher lives for the lifetime of the serve command.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	go func() {
		if err := watcherSvc.Watcher.Watch(watchCtx); err != nil {
			log.Error().Err(err).Msg("document watcher stopped")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down...")
		cancelWatch()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
		close(done)
	}()

	log.Info().
		Str("listen", server.Addr()).
		Str("document", storeSvc.Store.Path()).
		Int("rules", storeSvc.Store.Current().RuleCount()).
		Dur("poll_interval", watcherSvc.Watcher.Interval()).
		Msg("starting edgegate")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		// Failing to listen at all is the one fatal condition.
		log.Error().Err(err).Msg("server error")
		return err
	}

	<-done
	log.Info().Msg("server stopped")
	return nil
}

// waitForSync blocks on the startup gate. Ready and timed-out both return
// nil (a timeout starts the gateway degraded, the gate already logged the
// warning); only cancellation aborts.
func waitForSync(ctx context.Context, g *gate.Gate) error {
	err := g.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
