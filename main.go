package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrysluch/eva-table-reactor/config"
	"github.com/dmitrysluch/eva-table-reactor/db"
	"github.com/dmitrysluch/eva-table-reactor/download"
	"github.com/dmitrysluch/eva-table-reactor/fetcher"
	"github.com/dmitrysluch/eva-table-reactor/logger"
	"github.com/dmitrysluch/eva-table-reactor/notify"
	"github.com/dmitrysluch/eva-table-reactor/repository"
	"github.com/dmitrysluch/eva-table-reactor/sheets"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "eva-table-reactor",
	Short:         "Saves table extraction recipes and exports them across dated pages as CSV.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wiring shared by every command
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  db.Store
	repo   *repository.Repository

	host     fetcher.Host
	shutdown func() error
}

func newApp(ctx context.Context) (*app, error) {
	log := logger.SetDefault()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := db.Open(cfg.Storage.Driver, cfg.Storage.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}

	repo := repository.New(store, cfg.Storage.Key, log)
	if err := repo.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize table list: %w", err)
	}

	log.Info("storage ready", "driver", cfg.Storage.Driver)
	return &app{cfg: cfg, logger: log, store: store, repo: repo}, nil
}

// openHost starts the configured rendering host
func (a *app) openHost() error {
	switch a.cfg.Browser.Engine {
	case "colly":
		a.host = fetcher.NewCollyHost(a.cfg.Browser.UserAgent, 0, a.logger)
	default:
		h, err := fetcher.NewRodHost(a.cfg.Browser, a.logger)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		a.host = h
		a.shutdown = h.Shutdown
	}
	a.logger.Info("rendering host ready", "engine", a.cfg.Browser.Engine)
	return nil
}

// sink delivers to the local directory plus every configured remote
func (a *app) sink(ctx context.Context) (download.Sink, error) {
	sinks := download.Multi{download.NewDirSink(a.cfg.Download.Dir)}

	if a.cfg.Download.S3Bucket != "" {
		s3, err := download.NewS3Sink(ctx, a.cfg.Download.S3Bucket, a.cfg.Download.S3Prefix,
			a.cfg.Download.S3Region, a.cfg.Download.S3Endpoint, a.logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3)
	}

	if a.cfg.Download.SheetsSpreadsheet != "" {
		w, err := sheets.NewWriter(ctx, a.cfg.Download.SheetsSpreadsheet, a.cfg.Download.SheetsCredentials, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets writer: %w", err)
		}
		sinks = append(sinks, w)
	}

	return sinks, nil
}

func (a *app) notifier() notify.Notifier {
	notifiers := notify.Multi{notify.NewLog(a.logger)}

	if a.cfg.Notify.TelegramToken != "" && a.cfg.Notify.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatID)
		if err != nil {
			a.logger.Warn("telegram notifications disabled", "error", err)
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	if a.cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(a.cfg.Notify.WebhookURL))
	}

	return notifiers
}

func (a *app) Close() {
	if a.shutdown != nil {
		if err := a.shutdown(); err != nil {
			a.logger.Warn("failed to close browser", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}

func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
