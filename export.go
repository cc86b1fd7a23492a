package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrysluch/eva-table-reactor/dates"
	"github.com/dmitrysluch/eva-table-reactor/exporter"
	"github.com/dmitrysluch/eva-table-reactor/notify"
)

var exportDates string

func init() {
	exportCmd.Flags().StringVarP(&exportDates, "dates", "d", "", "Comma or newline separated dates")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <tableId> [date...]",
	Short: "Exports a table for the given dates and waits for the CSV.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		list := dates.Parse(exportDates + "," + strings.Join(args[1:], ","))

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

		res, err := exporter.New(a.repo, a.host, sink, a.logger).Export(ctx, args[0], list)

		ev := notify.Event{SchemaID: args[0], Err: err}
		if err == nil {
			ev.SchemaName = res.SchemaName
			ev.Dates = res.Dates
			ev.Rows = res.Rows
			ev.Location = res.Location
		}
		if nerr := a.notifier().Notify(context.WithoutCancel(ctx), ev); nerr != nil {
			a.logger.Warn("failed to send notification", "error", nerr)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\n%d rows written to %s\n", ev.Message(), res.Rows, res.Location)
		return nil
	},
}
