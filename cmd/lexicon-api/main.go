package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/lexicon/internal/config"
	"github.com/MarcoPoloResearchLab/lexicon/internal/database"
	"github.com/MarcoPoloResearchLab/lexicon/internal/logging"
	"github.com/MarcoPoloResearchLab/lexicon/internal/messages"
	"github.com/MarcoPoloResearchLab/lexicon/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	envFile string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lexicon-api",
		Short: "Lexicon message reconciliation service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newPushCommand())
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional .env file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, mysql)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "MySQL DSN")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("base-language", defaults.GetString("messages.base_language"), "Language whose keys are authoritative")
	cmd.PersistentFlags().Bool("shared-translations", defaults.GetBool("messages.shared_translations"), "Reuse confirmed translations across projects")
	cmd.PersistentFlags().Int("write-concurrency", defaults.GetInt("messages.write_concurrency"), "Concurrent message updates per language")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "messages.base_language", "base-language")
	bindFlag(cmd, "messages.shared_translations", "shared-translations")
	bindFlag(cmd, "messages.write_concurrency", "write-concurrency")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	config.LoadDotEnv(envFile)

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

// openMessagesService connects the configured database and builds the service on top of it.
// The returned close function releases the connection pool.
func openMessagesService(appConfig config.AppConfig, logger *zap.Logger) (*messages.Service, func(), error) {
	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		_ = sqlDB.Close()
	}

	service, err := messages.NewService(messages.ServiceConfig{
		Store:              messages.NewGormStore(db),
		IDProvider:         messages.NewUUIDProvider(),
		Logger:             logger,
		BaseLanguage:       appConfig.BaseLanguage,
		DefaultMaintainer:  appConfig.DefaultMaintainer,
		SharedTranslations: appConfig.SharedTranslations,
		WriteConcurrency:   appConfig.WriteConcurrency,
	})
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return service, closeDB, nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	messagesService, closeDB, err := openMessagesService(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		MessagesService: messagesService,
		Events:          server.NewEventDispatcher(),
		Logger:          logger,
		AllowedOrigins:  appConfig.CORSAllowedOrigins,
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

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("base_language", messagesService.BaseLanguage()))
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
