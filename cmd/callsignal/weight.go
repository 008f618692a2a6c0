package main

import (
	"fmt"
	"log/slog"

	"github.com/spacesedan/callsignal/internal/clients"
	"github.com/spacesedan/callsignal/internal/db"
	"github.com/spacesedan/callsignal/internal/keywords"
	"github.com/spacesedan/callsignal/internal/pipeline"
	"github.com/spacesedan/callsignal/internal/spreadsheet"
	"github.com/spf13/cobra"
)

func newWeightCommand(ctx *commandContext) *cobra.Command {
	var (
		keywordTable string
		store        string
	)

	cmd := &cobra.Command{
		Use:   "weight",
		Short: "Recompute weights for existing score files from the keyword table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if store != STORE_NONE && store != STORE_DYNAMODB {
				return fmt.Errorf("unsupported --store %q: want %s or %s", store, STORE_NONE, STORE_DYNAMODB)
			}

			rows, err := spreadsheet.ReadKeywordTable(keywordTable)
			if err != nil {
				return err
			}
			index := keywords.NewIndex(rows)

			var writer pipeline.RecordWriter
			if store == STORE_DYNAMODB {
				client, err := clients.NewDynamoDBClient(cmd.Context(), awsOptions(cfg))
				if err != nil {
					return err
				}
				writer = db.NewDynamoStore(client, cfg.DynamoRecordsTable, cfg.DynamoSummaryTable)
			}

			n, err := pipeline.ReweightAll(cmd.Context(), spreadsheet.ScoresDir{Root: cfg.ScoresRoot}, index, writer)
			slog.Info("[Weight] Done", slog.Int("files", n))
			fmt.Fprintf(cmd.OutOrStdout(), "Reweighted %d score file(s) under %s\n", n, cfg.ScoresRoot)
			return err
		},
	}

	cmd.Flags().StringVar(&keywordTable, "keywords", "", "Keyword table workbook")
	cmd.Flags().StringVar(&store, "store", STORE_NONE, "Record store to refresh with the new weights: none or dynamodb")
	_ = cmd.MarkFlagRequired("keywords")
	return cmd
}
