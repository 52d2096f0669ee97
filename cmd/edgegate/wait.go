package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/avelinc/edgegate/internal/di"
)

var waitCheck bool

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until the sync subsystem signals readiness",
	Long: `Wait for the sync completion marker before starting a dependent service:

    edgegate wait && exec my-service

The wait fails open: when the timeout elapses without a fresh marker, a
degraded-start warning is logged and the command still exits 0 so the
dependent service starts anyway. A marker older than the freshness window
counts as absent. With --check, a single non-blocking probe is made and the
exit code reports readiness.`,
	RunE: runWait,
}

func init() {
	waitCmd.Flags().BoolVar(&waitCheck, "check", false,
		"probe readiness once and exit 1 when not ready")
	rootCmd.AddCommand(waitCmd)
}

func runWait(cmd *cobra.Command, _ []string) error {
	container := di.NewContainer(configPath())
	defer func() { _ = container.Shutdown() }()

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
	g := gateSvc.Gate

	if waitCheck {
		if !g.Ready() {
			cmd.SilenceUsage = true
			return errors.New("sync not ready")
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = g.Wait(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	default:
		// Timeout: warning already logged, proceed degraded.
		return nil
	}
}
