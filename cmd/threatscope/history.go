// cmd/threatscope/history.go
package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/signalnine/threatscope/internal/collector"
	"github.com/signalnine/threatscope/internal/config"
	"github.com/signalnine/threatscope/internal/protocol"
	"github.com/signalnine/threatscope/internal/report"
)

func newHistoryCmd() *cobra.Command {
	var (
		dbPath   string
		source   string
		limit    int
		elevated bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List analyses stored by the collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(output)
			if err != nil {
				return err
			}

			db, err := collector.NewDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			var rows []protocol.StoredAnalysis
			if elevated {
				rows, err = db.QueryElevated(cmd.Context(), limit)
			} else {
				rows, err = db.QueryBySource(cmd.Context(), source, limit)
			}
			if err != nil {
				return err
			}

			if format == report.FormatJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			return report.History(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", config.DefaultDBPath, "collector database path")
	cmd.Flags().StringVar(&source, "source", "", "only show this source")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.Flags().BoolVar(&elevated, "elevated", false, "only show runs rated above LOW")
	cmd.Flags().StringVarP(&output, "output", "o", string(report.FormatTable), "output format: table, json")
	return cmd
}
