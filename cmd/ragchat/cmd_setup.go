package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/ragchat/internal/config"
	"github.com/user/ragchat/internal/state"
	"github.com/user/ragchat/internal/types"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("ragchat setup")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.API.BaseURL = prompt(scanner, "RAG service URL", cfg.API.BaseURL)
		cfg.Store.Backend = choose(scanner, "Settings store",
			[]string{state.BackendFile, state.BackendBolt, state.BackendRedis, state.BackendMemory}, cfg.Store.Backend)
		if cfg.Store.Backend == state.BackendRedis {
			cfg.Store.RedisURL = prompt(scanner, "Redis URL", cfg.Store.RedisURL)
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		// Credential and role live in the settings store, not the config file.
		setupLogging(cfg)
		ctx := context.Background()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		current := a.session.Credential()
		label := "API key"
		if current != "" {
			label = fmt.Sprintf("API key (Enter keeps %s)", maskKey(current))
		}
		if key := prompt(scanner, label, ""); key != "" {
			if err := a.session.SetCredential(ctx, key); err != nil {
				return err
			}
		}

		roles := make([]string, len(types.Roles))
		for i, r := range types.Roles {
			roles[i] = string(r)
		}
		role, err := types.ParseRole(choose(scanner, "Role", roles, string(a.session.Role())))
		if err != nil {
			return err
		}
		if err := a.session.SetRole(ctx, role); err != nil {
			return err
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		fmt.Printf("Connection check: %s\n", connectivityLabel(a.monitor.Probe(ctx)))
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

// choose prompts until the answer is one of options.
func choose(scanner *bufio.Scanner, label string, options []string, defaultVal string) string {
	label = fmt.Sprintf("%s (%s)", label, strings.Join(options, "/"))
	for {
		v := strings.ToLower(prompt(scanner, label, defaultVal))
		for _, o := range options {
			if v == o {
				return v
			}
		}
		fmt.Printf("  %q is not one of %s\n", v, strings.Join(options, ", "))
		if v == strings.ToLower(defaultVal) {
			return defaultVal
		}
	}
}
