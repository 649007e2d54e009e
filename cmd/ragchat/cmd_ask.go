package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(askCmd, ingestCmd, healthCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question in the current conversation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			msg, err := a.chat.Send(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printMessage(os.Stdout, *msg)
			return nil
		})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ask the backend to re-index its documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			resp, err := a.chat.Ingest(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Ingestion %s.", resp.Status)
			if resp.Message != "" {
				fmt.Fprintf(os.Stdout, " %s", resp.Message)
			}
			fmt.Fprintln(os.Stdout)
			return nil
		})
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the backend once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			st := a.monitor.Probe(ctx)
			fmt.Fprintf(os.Stdout, "%s: %s\n", a.client.BaseURL(), connectivityLabel(st))
			if a.session.Credential() == "" {
				fmt.Fprintln(os.Stdout, "No API key set; run `ragchat key set <key>` to enable checks.")
			}
			return nil
		})
	},
}
