package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spacesedan/callsignal/config"
	"github.com/spacesedan/callsignal/internal/clients"
	"github.com/spacesedan/callsignal/internal/db"
	"github.com/spacesedan/callsignal/internal/keywords"
	"github.com/spacesedan/callsignal/internal/models"
	"github.com/spacesedan/callsignal/internal/pipeline"
	"github.com/spacesedan/callsignal/internal/sentiment"
	"github.com/spacesedan/callsignal/internal/spreadsheet"
	"github.com/spf13/cobra"
)

const (
	STORE_NONE     = "none"
	STORE_FILES    = "files"
	STORE_DYNAMODB = "dynamodb"
)

type processOptions struct {
	workbook  string
	keywords  string
	cutoff    string
	chunkSize int
	workers   int
	model     string
	store     string
	ledger    bool
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	opts := processOptions{}

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Score keyword paragraphs for every company quarter in a transcript workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := runProcess(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			if n := report.Count(pipeline.STATUS_FAILED); n > 0 {
				return fmt.Errorf("%d quarter(s) failed", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.workbook, "workbook", "", "Transcript workbook, one sheet per company")
	cmd.Flags().StringVar(&opts.keywords, "keywords", "", "Keyword table workbook")
	cmd.Flags().StringVar(&opts.cutoff, "cutoff", "", "Skip quarters at or before this one, e.g. 2023Q2")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Maximum characters per scored chunk")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent scoring workers")
	cmd.Flags().StringVar(&opts.model, "model", "", "Path to the ONNX sentiment model directory")
	cmd.Flags().StringVar(&opts.store, "store", STORE_NONE, "Record store for scored paragraphs: none or dynamodb")
	cmd.Flags().BoolVar(&opts.ledger, "ledger", false, "Track processed quarters in Valkey")
	_ = cmd.MarkFlagRequired("workbook")
	_ = cmd.MarkFlagRequired("keywords")

	return cmd
}

// resolve fills unset flags from the loaded config.
func (o processOptions) resolve(cfg config.Config) (processOptions, *models.QuarterKey, error) {
	if o.chunkSize <= 0 {
		o.chunkSize = cfg.ChunkSize
	}
	if o.workers <= 0 {
		o.workers = cfg.Workers
	}
	if o.model == "" {
		o.model = cfg.ModelPath
	}
	if o.store != STORE_NONE && o.store != STORE_DYNAMODB {
		return o, nil, fmt.Errorf("unsupported --store %q: want %s or %s", o.store, STORE_NONE, STORE_DYNAMODB)
	}
	if o.cutoff == "" {
		return o, nil, nil
	}
	cutoff, err := models.ParseQuarterKey(o.cutoff)
	if err != nil {
		return o, nil, fmt.Errorf("invalid --cutoff: %w", err)
	}
	return o, &cutoff, nil
}

func runProcess(ctx context.Context, cfg config.Config, opts processOptions) (pipeline.Report, error) {
	opts, cutoff, err := opts.resolve(cfg)
	if err != nil {
		return pipeline.Report{}, err
	}

	rows, err := spreadsheet.ReadKeywordTable(opts.keywords)
	if err != nil {
		return pipeline.Report{}, err
	}
	index := keywords.NewIndex(rows)
	if index.Len() == 0 {
		return pipeline.Report{}, fmt.Errorf("no usable keywords in %s", opts.keywords)
	}

	sheets, err := spreadsheet.ReadWorkbook(opts.workbook)
	if err != nil {
		return pipeline.Report{}, err
	}

	classifier, err := sentiment.NewHugotClassifier(opts.model)
	if err != nil {
		return pipeline.Report{}, err
	}
	defer func() {
		if err := classifier.Close(); err != nil {
			slog.Warn("[Process] Failed to close classifier", slog.String("error", err.Error()))
		}
	}()

	splitter, err := sentiment.NewPunktSplitter()
	if err != nil {
		return pipeline.Report{}, err
	}
	scorer := sentiment.NewScorer(classifier, sentiment.NewVaderLexicon(), splitter)

	p := pipeline.New(scorer, index, spreadsheet.ScoresDir{Root: cfg.ScoresRoot}, pipeline.Options{
		ChunkSize: opts.chunkSize,
		Workers:   opts.workers,
		Cutoff:    cutoff,
	})

	if opts.store == STORE_DYNAMODB {
		client, err := clients.NewDynamoDBClient(ctx, awsOptions(cfg))
		if err != nil {
			return pipeline.Report{}, err
		}
		p.WithRecordWriter(db.NewDynamoStore(client, cfg.DynamoRecordsTable, cfg.DynamoSummaryTable))
	}

	if opts.ledger {
		ledger, err := clients.NewValkeyLedger(ctx, clients.ValkeyOptions{
			Address:  cfg.ValkeyAddress,
			Password: cfg.ValkeyPassword,
			TLS:      cfg.ValkeyTLS,
		})
		if err != nil {
			return pipeline.Report{}, err
		}
		defer ledger.Close()
		p.WithLedger(ledger)
	}

	slog.Info("[Process] Starting",
		slog.Int("companies", len(sheets)),
		slog.Int("keywords", index.Len()),
		slog.Int("workers", opts.workers))

	return p.ProcessWorkbook(ctx, sheets), nil
}

func awsOptions(cfg config.Config) clients.AWSOptions {
	return clients.AWSOptions{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpoint}
}

func renderReport(report pipeline.Report) string {
	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		detail := res.Path
		if res.Err != nil {
			detail = res.Err.Error()
		}
		rows = append(rows, []string{
			res.Company,
			res.Quarter.Label(),
			string(res.Status),
			strconv.Itoa(res.Records),
			strconv.Itoa(res.FailedChunks),
			detail,
		})
	}
	return renderTable(
		[]string{"Company", "Quarter", "Status", "Records", "Failed", "Detail"},
		rows,
		map[int]bool{3: true, 4: true},
	)
}
