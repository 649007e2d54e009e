package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/ragchat/internal/config"
	logx "github.com/user/ragchat/pkg/logger"
)

var (
	cfgPath     string
	envFilePath string
)

var rootCmd = &cobra.Command{
	Use:           "ragchat",
	Short:         "Chat client for a role-aware RAG service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&envFilePath, "env-file", ".env", "optional dotenv file with RAGCHAT_* overrides")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, exiting on failure.
func loadConfig() *config.Config {
	if err := config.LoadDotEnv(envFilePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	logx.Init(logx.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
}
