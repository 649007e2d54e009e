package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/ragchat/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd)
	configListCmd.Flags().BoolVar(&revealSecrets, "reveal", false, "print secret values unmasked")
}

var revealSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file (API key and role live in the settings store: see key, role)",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective values and whether each comes from the file, the environment or a default",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFilePath); err != nil {
			return err
		}
		entries, err := config.Describe(cfgPath, revealSecrets)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}
		printEntries(os.Stdout, entries)
		return nil
	},
}

func printEntries(out io.Writer, entries []config.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
	for _, e := range entries {
		source := string(e.Source)
		if e.Source == config.SourceEnv {
			source = e.Env
		}
		value := e.Value
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, value, source)
	}
	w.Flush()
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.Get(loadConfig(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Validate and write a value to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		// Load first so a missing file is created with defaults.
		loadConfig()
		if err := config.Set(cfgPath, key, value); err != nil {
			return err
		}
		if config.IsSecret(key) {
			value = config.Mask(value)
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", key, value)
		if name := config.EnvName(key); name != "" {
			if _, ok := os.LookupEnv(name); ok {
				fmt.Fprintf(os.Stdout, "Note: %s is set and overrides this value.\n", name)
			}
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, cfgPath)
	},
}
