package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sumukeio/sumu-note-sync/internal/auth"
	"github.com/sumukeio/sumu-note-sync/internal/config"
	"github.com/sumukeio/sumu-note-sync/internal/logging"
	"github.com/sumukeio/sumu-note-sync/internal/queue"
	"github.com/sumukeio/sumu-note-sync/internal/remote"
	"github.com/sumukeio/sumu-note-sync/internal/server"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sumu-sync-agent",
		Short: "Sumu note sync agent",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "Localhost API listen address")
	cmd.PersistentFlags().String("backend-base-url", defaults.GetString("backend.base_url"), "Hosted backend base URL")
	cmd.PersistentFlags().String("backend-probe-url", defaults.GetString("backend.probe_url"), "Connectivity probe URL (defaults to the backend base URL)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "Offline queue SQLite path")
	cmd.PersistentFlags().String("web-origin", defaults.GetString("web.origin"), "Allowed web editor origin")
	cmd.PersistentFlags().String("session-token", "", "Backend session token (overrides env)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "backend.base_url", "backend-base-url")
	bindFlag(cmd, "backend.probe_url", "backend-probe-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "web.origin", "web-origin")
	bindFlag(cmd, "session.token", "session-token")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runAgent(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := queue.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	pending, err := queue.NewStore(queue.Config{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sessionToken, err := auth.ParseSessionToken(appConfig.SessionToken)
	if err != nil {
		return err
	}

	store, err := remote.NewHTTPStore(remote.HTTPStoreConfig{
		BaseURL: appConfig.BackendBaseURL,
		Tokens:  sessionToken,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	realtime, err := remote.NewRealtime(remote.RealtimeConfig{
		BaseURL: appConfig.BackendBaseURL,
		Tokens:  sessionToken,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	monitor := remote.NewMonitor(remote.MonitorConfig{
		ProbeURL: appConfig.ProbeURL,
		Logger:   logger,
	})

	dispatcher := server.NewStatusDispatcher()

	sessions, err := server.NewSessionManager(server.SessionManagerConfig{
		Store:      store,
		Pending:    pending,
		Feed:       realtime,
		IsOnline:   monitor.IsOnline,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer sessions.CloseAll()

	flush := func(flushCtx context.Context) (queue.FlushReport, error) {
		if sessionToken.Expired(time.Now()) {
			return queue.FlushReport{}, fmt.Errorf("session token expired at %s", sessionToken.ExpiresAt().Format(time.RFC3339))
		}
		return pending.SyncPendingNotes(flushCtx, store)
	}

	unsubscribe := monitor.OnChange(func(online bool) {
		state := online
		dispatcher.Publish(server.StatusEvent{
			EventType: server.StatusEventConnectivity,
			Online:    &state,
			Timestamp: time.Now().UTC(),
		})
		if !online {
			return
		}
		report, flushErr := flush(context.Background())
		if flushErr != nil {
			logger.Error("queue flush on reconnect failed", zap.Error(flushErr))
			return
		}
		dispatcher.Publish(server.StatusEvent{
			EventType: server.StatusEventFlush,
			Synced:    report.Synced,
			Failed:    report.Failed,
			Timestamp: time.Now().UTC(),
		})
	})
	defer unsubscribe()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Pending:    pending,
		Flush:      flush,
		IsOnline:   monitor.IsOnline,
		Dispatcher: dispatcher,
		Sessions:   sessions,
		WebOrigin:  appConfig.WebOrigin,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go monitor.Start(signalCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agent starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
