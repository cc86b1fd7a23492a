package main

import (
	"context"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/dmitrysluch/eva-table-reactor/api"
	"github.com/dmitrysluch/eva-table-reactor/bot"
	"github.com/dmitrysluch/eva-table-reactor/exporter"
	"github.com/dmitrysluch/eva-table-reactor/scheduler"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the command API, the export worker and the optional Telegram bot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.openHost(); err != nil {
			return err
		}
		sink, err := a.sink(ctx)
		if err != nil {
			return err
		}

		exp := exporter.New(a.repo, a.host, sink, a.logger)
		sched := scheduler.NewScheduler(exp, a.notifier(), a.logger)
		sched.Start()
		a.logger.Info("scheduler started")
		defer sched.Stop()

		if a.cfg.Notify.TelegramToken != "" && len(a.cfg.Bot.AllowedUserIDs) > 0 {
			startBot(ctx, a, sched)
		}

		return api.Serve(ctx, a.cfg.Server.ListenAddr, api.NewRouter(api.NewDispatcher(a.repo, sched, a.logger)), a.logger)
	},
}

func startBot(ctx context.Context, a *app, sched *scheduler.Scheduler) {
	botAPI, err := tgbotapi.NewBotAPI(a.cfg.Notify.TelegramToken)
	if err != nil {
		a.logger.Warn("telegram bot disabled", "error", err)
		return
	}
	a.logger.Info("telegram bot authorized", "account", botAPI.Self.UserName)

	go bot.New(botAPI, a.repo, sched, a.cfg.Bot.AllowedUserIDs, a.logger).Run(ctx)
}
