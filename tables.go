package main

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dmitrysluch/eva-table-reactor/models"
)

var tablesURL string

func init() {
	tablesCmd.Flags().StringVar(&tablesURL, "url", "", "Only list tables bound to this page URL")
	rootCmd.AddCommand(tablesCmd)
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Prints the saved tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(30 * time.Second)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var tables []models.TableSchema
		if tablesURL != "" {
			tables, err = a.repo.FindByURL(ctx, tablesURL)
		} else {
			tables, err = a.repo.List(ctx)
		}
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"ID", "Name", "Page", "Selector", "Section", "Columns"})
		for _, s := range tables {
			t.AppendRow(table.Row{s.ID, s.Name, s.Page.String(), s.TableSelector, s.DataSection, len(s.Columns)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
