package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/microfunc/microfunc/internal/adapter/notify/webhook"
)

func newSendWebhookCmd() *cobra.Command {
	var dataFile string

	cmd := &cobra.Command{
		Use:   "send-webhook <event-type>",
		Short: "Send an ad-hoc notification through the configured webhooks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			payload := map[string]any{}
			if dataFile != "" {
				if err := readJSONFile(dataFile, &payload); err != nil {
					return err
				}
			}
			payload["event"] = args[0]
			payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)

			notifier := webhook.NewNotifier(a.manifest.Communication.Webhooks, a.log.Named("Webhook"))
			notifier.Notify(cmd.Context(), args[0], payload)
			fmt.Printf("Sent %s notification\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "path to a JSON file with the payload")
	return cmd
}

func newCallAPICmd() *cobra.Command {
	var paramsFile string

	cmd := &cobra.Command{
		Use:   "call-api <api-id> <method>",
		Short: "Call a method on a manifest-declared external API",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			params := map[string]any{}
			if paramsFile != "" {
				if err := readJSONFile(paramsFile, &params); err != nil {
					return err
				}
			}

			result, err := a.apis.Call(cmd.Context(), args[0], args[1], params)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&paramsFile, "params", "", "path to a JSON file with method parameters")
	return cmd
}

func readJSONFile(path string, dst *map[string]any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
