package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// _readinessDrainDelay is time to sleep while context shutdown message propagate
const _readinessDrainDelay = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the task manager daemon: manifest sync plus the background scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, appOptions{scheduler: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireTaskManager(); err != nil {
				return err
			}

			// Sync declared tasks before the first scan.
			tasks, err := a.manifestTasks()
			if err != nil {
				return err
			}
			if err := a.engine.Sync(ctx, tasks); err != nil {
				zap.L().Error("Initial task sync failed", zap.Error(err))
			}

			if addr := a.cfg.TaskManager.MetricsAddr; addr != "" {
				go a.metrics.Serve(addr, a.db.DBHealth, a.log.Named("Metrics"))
			}

			if !a.cfg.TaskManager.AutoUpdateStatus {
				fmt.Println("Automatic status updates disabled; scheduler not started")
				<-ctx.Done()
			} else {
				a.sched.Start(ctx)
			}

			// Wait for signal propagation
			time.Sleep(_readinessDrainDelay)
			zap.L().Info("Graceful shutdown complete.")
			return nil
		},
	}
}
