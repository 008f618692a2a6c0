package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/spacesedan/callsignal/config"
	"github.com/spacesedan/callsignal/internal/aggregation"
	"github.com/spacesedan/callsignal/internal/clients"
	"github.com/spacesedan/callsignal/internal/db"
	"github.com/spacesedan/callsignal/internal/models"
	"github.com/spacesedan/callsignal/internal/spreadsheet"
	"github.com/spf13/cobra"
)

type summarizeOptions struct {
	store   string
	company string
	quarter string
}

func newSummarizeCommand(ctx *commandContext) *cobra.Command {
	opts := summarizeOptions{}

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Aggregate scored paragraphs into per-category company quarter summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			summaries, err := runSummarize(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummaries(summaries))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.store, "store", STORE_FILES, "Record source: files or dynamodb")
	cmd.Flags().StringVar(&opts.company, "company", "", "Only summarize this company")
	cmd.Flags().StringVar(&opts.quarter, "quarter", "", "Only summarize this quarter, e.g. 2023Q4")
	return cmd
}

func runSummarize(ctx context.Context, cfg config.Config, opts summarizeOptions) ([]models.CompanyQuarterSummary, error) {
	dir := spreadsheet.ScoresDir{Root: cfg.ScoresRoot}

	var (
		store aggregation.Store
		keys  []models.SummaryKey
		err   error
	)
	switch opts.store {
	case STORE_FILES:
		mem := db.NewMemoryStore()
		if err := mem.LoadScoreFiles(ctx, dir); err != nil {
			return nil, err
		}
		store = mem
		keys = mem.Keys()
	case STORE_DYNAMODB:
		client, err := clients.NewDynamoDBClient(ctx, awsOptions(cfg))
		if err != nil {
			return nil, err
		}
		store = db.NewDynamoStore(client, cfg.DynamoRecordsTable, cfg.DynamoSummaryTable)
		if keys, err = scoreFileKeys(dir); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported --store %q: want %s or %s", opts.store, STORE_FILES, STORE_DYNAMODB)
	}

	if keys, err = filterKeys(keys, opts.company, opts.quarter); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		slog.Warn("[Summarize] No company quarters to summarize", slog.String("scores_root", cfg.ScoresRoot))
		return nil, nil
	}

	engine := aggregation.NewEngine(store)
	summaries := make([]models.CompanyQuarterSummary, 0, len(keys))
	for _, key := range keys {
		summary, err := engine.SummarizeAndStore(ctx, key)
		if err != nil {
			return summaries, fmt.Errorf("failed to summarize %s %s: %w", key.Company, key.Period, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// scoreFileKeys lists the company periods that have a score file on disk.
func scoreFileKeys(dir spreadsheet.ScoresDir) ([]models.SummaryKey, error) {
	companies, err := dir.Companies()
	if err != nil {
		return nil, err
	}

	var keys []models.SummaryKey
	for _, company := range companies {
		files, err := spreadsheet.ListScoreFiles(dir.CompanyDir(company))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			keys = append(keys, models.SummaryKey{Company: f.Company, Period: f.Quarter.Label()})
		}
	}
	return keys, nil
}

func filterKeys(keys []models.SummaryKey, company, quarter string) ([]models.SummaryKey, error) {
	period := ""
	if quarter != "" {
		q, err := models.ParseQuarterKey(quarter)
		if err != nil {
			return nil, fmt.Errorf("invalid --quarter: %w", err)
		}
		period = q.Label()
	}

	// An explicit company and quarter is summarized even without local files.
	if company != "" && period != "" {
		return []models.SummaryKey{{Company: company, Period: period}}, nil
	}

	seen := make(map[models.SummaryKey]bool, len(keys))
	out := make([]models.SummaryKey, 0, len(keys))
	for _, k := range keys {
		if company != "" && k.Company != company {
			continue
		}
		if period != "" && k.Period != period {
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Company != out[j].Company {
			return out[i].Company < out[j].Company
		}
		qi, _ := models.ParseQuarterKey(out[i].Period)
		qj, _ := models.ParseQuarterKey(out[j].Period)
		return qi.Before(qj)
	})
	return out, nil
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func renderSummaries(summaries []models.CompanyQuarterSummary) string {
	headers := append([]string{"Company", "Period"}, models.Categories...)
	headers = append(headers, "Total", "Weighted")

	right := make(map[int]bool, len(headers))
	for i := 2; i < len(headers); i++ {
		right[i] = true
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		byCategory := make(map[string]models.CategorySummary, len(s.Categories))
		for _, c := range s.Categories {
			byCategory[c.Category] = c
		}

		row := []string{s.Company, s.Period}
		for _, name := range models.Categories {
			c, ok := byCategory[name]
			if !ok || c.Count == 0 {
				row = append(row, "-")
				continue
			}
			avg := c.Average
			row = append(row, fmt.Sprintf("%s (%d)", formatScore(&avg), c.Count))
		}
		row = append(row, formatScore(s.TotalAverage), formatScore(s.WeightedAverage))
		rows = append(rows, row)
	}
	return renderTable(headers, rows, right)
}
