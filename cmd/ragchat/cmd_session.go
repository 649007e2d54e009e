package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/user/ragchat/internal/conversation"
	"github.com/user/ragchat/internal/types"
)

func init() {
	rootCmd.AddCommand(keyCmd, roleCmd, conversationCmd, exportCmd)
	keyCmd.AddCommand(keySetCmd, keyShowCmd, keyClearCmd)
	roleCmd.AddCommand(roleSetCmd, roleShowCmd)
	conversationCmd.AddCommand(conversationShowCmd, conversationHistoryCmd, conversationClearCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "export format (json, text, html)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output directory (default: <data_dir>/exports)")
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the backend API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store the API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.session.SetCredential(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "API key set (%s).\n", maskKey(args[0]))
			return nil
		})
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored API key, masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			fmt.Fprintln(os.Stdout, maskKey(a.session.Credential()))
			return nil
		})
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.session.SetCredential(ctx, ""); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "API key cleared.")
			return nil
		})
	},
}

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage the access role sent with questions",
}

var roleSetCmd = &cobra.Command{
	Use:       "set <public|internal|restricted>",
	Short:     "Set the access role",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(types.RolePublic), string(types.RoleInternal), string(types.RoleRestricted)},
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := types.ParseRole(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.session.SetRole(ctx, role); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Role set to %s.\n", role)
			return nil
		})
	},
}

var roleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the access role",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			fmt.Fprintln(os.Stdout, a.session.Role())
			return nil
		})
	},
}

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Inspect or reset the current conversation",
}

var conversationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current conversation id and size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID\t%s\n", a.session.CurrentID())
			fmt.Fprintf(w, "ROLE\t%s\n", a.session.Role())
			fmt.Fprintf(w, "MESSAGES\t%d\n", a.log().Len())
			return w.Flush()
		})
	},
}

var conversationHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the conversation log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			msgs := a.log().Messages()
			if len(msgs) == 0 {
				fmt.Println("No messages yet.")
				return nil
			}
			for _, m := range msgs {
				printMessage(os.Stdout, m)
				fmt.Println()
			}
			return nil
		})
	},
}

var conversationClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the log and start a new conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			id, err := a.chat.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Started conversation %s.\n", id)
			return nil
		})
	},
}

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the conversation log to a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			exp, err := a.log().Export(exportFormat)
			if err != nil {
				return err
			}
			dir := exportOut
			if dir == "" {
				dir = a.cfg.ExportPath()
			}
			path, err := conversation.WriteExport(dir, exp)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Exported %d messages to %s (%s).\n",
				a.log().Len(), path, humanize.Bytes(uint64(len(exp.Data))))
			return nil
		})
	},
}
