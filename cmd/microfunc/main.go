package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	rootCtx, rootCtxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCtxCancel()

	root := &cobra.Command{
		Use:           "microfunc",
		Short:         "Project scaffolding and task orchestration for gRPC microservice projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSyncCmd(),
		newTasksCmd(),
		newServeCmd(),
		newSendWebhookCmd(),
		newCallAPICmd(),
	)

	if err := root.ExecuteContext(rootCtx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
