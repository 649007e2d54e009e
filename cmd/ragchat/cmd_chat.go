package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/ragchat/internal/chat"
	"github.com/user/ragchat/internal/conversation"
	"github.com/user/ragchat/internal/gateway"
	"github.com/user/ragchat/internal/types"
	logx "github.com/user/ragchat/pkg/logger"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			if err := a.monitor.Start(ctx); err != nil {
				return fmt.Errorf("start monitor: %w", err)
			}
			defer a.monitor.Stop()

			updates, unsubscribe := a.signal.Subscribe()
			defer unsubscribe()
			go logConnectivity(ctx, updates)

			return runREPL(ctx, a, os.Stdin, os.Stdout)
		})
	},
}

// logConnectivity logs transitions until ctx ends or updates is closed.
func logConnectivity(ctx context.Context, updates <-chan types.ConnectivityState) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			logx.Debug().Str("state", string(st)).Msg("connectivity changed")
		}
	}
}

func runREPL(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "ragchat - role %s, conversation %s\n", a.session.Role(), a.session.CurrentID())
	fmt.Fprintln(out, "Type a question, or /status /ingest /export [format] /clear /quit.")
	for _, m := range a.log().Messages() {
		printMessage(out, m)
		fmt.Fprintln(out)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runSlash(ctx, a, line, out)
			if err != nil {
				printError(out, err)
			}
			if quit {
				return nil
			}
			continue
		}

		msg, err := a.chat.Send(ctx, line)
		if err != nil {
			if errors.Is(err, chat.ErrPending) {
				fmt.Fprintln(out, "Still waiting for the previous answer.")
				continue
			}
			printError(out, err)
			continue
		}
		printMessage(out, *msg)
		fmt.Fprintln(out)
	}
}

func runSlash(ctx context.Context, a *app, line string, out io.Writer) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/status":
		fmt.Fprintf(out, "Connection:   %s\n", connectivityLabel(a.signal.Get()))
		fmt.Fprintf(out, "Role:         %s\n", a.session.Role())
		fmt.Fprintf(out, "API key:      %s\n", maskKey(a.session.Credential()))
		fmt.Fprintf(out, "Conversation: %s (%d messages)\n", a.session.CurrentID(), a.log().Len())
		return false, nil
	case "/ingest":
		resp, err := a.chat.Ingest(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Ingestion %s.\n", resp.Status)
		return false, nil
	case "/clear":
		id, err := a.chat.Clear(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Started conversation %s.\n", id)
		return false, nil
	case "/export":
		format := "json"
		if len(fields) > 1 {
			format = fields[1]
		}
		exp, err := a.log().Export(format)
		if err != nil {
			return false, err
		}
		path, err := conversation.WriteExport(a.cfg.ExportPath(), exp)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Exported to %s\n", path)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

func printError(out io.Writer, err error) {
	if hint := gateway.Hint(err); hint != "" {
		fmt.Fprintf(out, "Error: %v (%s)\n", err, hint)
		return
	}
	fmt.Fprintf(out, "Error: %v\n", err)
}
