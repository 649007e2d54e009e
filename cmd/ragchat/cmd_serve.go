package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sourcegraph/conc"

	"github.com/user/ragchat/internal/api"
	logx "github.com/user/ragchat/pkg/logger"
)

const pidFileName = "ragchat.pid"

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP API and connectivity monitor",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFileName)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	defer a.monitor.Stop()

	var wg conc.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	if cfg.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           api.NewServer(a.chat, a.session, a.signal),
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Go(func() {
			logx.Info().Str("listen", cfg.HTTP.Listen).Msg("api server started")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logx.Error().Err(err).Msg("api server error")
			}
		})
		wg.Go(func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			httpServer.Shutdown(shutdownCtx)
		})
	} else {
		logx.Warn().Msg("api server disabled (http.enabled=false)")
	}

	logx.Info().
		Str("data_dir", cfg.DataDir).
		Str("store", cfg.Store.Backend).
		Str("base_url", a.client.BaseURL()).
		Str("role", string(a.session.Role())).
		Str("pid_file", pidPath).
		Msg("ragchat started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			logx.Info().Msg("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				logx.Error().Err(err).Msg("failed to get executable path")
				continue
			}
			// The new process writes its own PID file.
			os.Remove(pidPath)
			a.Close()
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				logx.Error().Err(err).Msg("failed to re-exec")
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					logx.Error().Err(writeErr).Msg("failed to re-write PID file")
				}
				return fmt.Errorf("re-exec: %w", err)
			}
		}
		logx.Info().Str("signal", sig.String()).Msg("shutting down")
		return nil
	}
}
