package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spacesedan/callsignal/internal/keywords"
	"github.com/spacesedan/callsignal/internal/models"
	"github.com/spacesedan/callsignal/internal/sentiment"
	"github.com/spacesedan/callsignal/internal/spreadsheet"
	"github.com/spacesedan/callsignal/internal/transcript"
	"github.com/spacesedan/callsignal/internal/weighting"
)

// OutputSink persists one scored table per company quarter.
type OutputSink interface {
	Exists(company string, key models.QuarterKey) (bool, error)
	Write(company string, key models.QuarterKey, callDate time.Time, records []models.WeightedRecord) (string, error)
}

type RecordWriter interface {
	PutRecords(ctx context.Context, company, period string, records []models.WeightedRecord) error
}

// Ledger is an optional shared record of processed company quarters.
type Ledger interface {
	IsProcessed(ctx context.Context, company, period string) (bool, error)
	MarkProcessed(ctx context.Context, company, period string) error
}

type Options struct {
	ChunkSize int
	Workers   int
	// Cutoff stops a company's walk at the first quarter at or before it.
	Cutoff *models.QuarterKey
}

type Pipeline struct {
	scorer  sentiment.TextScorer
	index   *keywords.Index
	sink    OutputSink
	records RecordWriter
	ledger  Ledger
	opts    Options
}

func New(scorer sentiment.TextScorer, index *keywords.Index, sink OutputSink, opts Options) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = transcript.DEFAULT_CHUNK_SIZE
	}
	if opts.Workers <= 0 {
		opts.Workers = DEFAULT_WORKERS
	}
	return &Pipeline{
		scorer: scorer,
		index:  index,
		sink:   sink,
		opts:   opts,
	}
}

func (p *Pipeline) WithRecordWriter(w RecordWriter) *Pipeline {
	p.records = w
	return p
}

func (p *Pipeline) WithLedger(l Ledger) *Pipeline {
	p.ledger = l
	return p
}

type Status string

const (
	STATUS_PROCESSED Status = "processed"
	STATUS_SKIPPED   Status = "skipped"
	STATUS_FAILED    Status = "failed"
)

type QuarterResult struct {
	Company      string
	Quarter      models.QuarterKey
	Status       Status
	Path         string
	Records      int
	FailedChunks int
	Err          error
}

type Report struct {
	Results []QuarterResult
}

func (r Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

type datedColumn struct {
	quarter  models.QuarterKey
	callDate time.Time
	cells    []string
}

// ProcessWorkbook processes every company sheet in turn.
func (p *Pipeline) ProcessWorkbook(ctx context.Context, sheets []spreadsheet.CompanySheet) Report {
	var report Report
	for _, sheet := range sheets {
		if ctx.Err() != nil {
			break
		}
		report.Results = append(report.Results, p.ProcessCompany(ctx, sheet)...)
	}

	slog.Info("[Pipeline] Workbook finished",
		slog.Int("processed", report.Count(STATUS_PROCESSED)),
		slog.Int("skipped", report.Count(STATUS_SKIPPED)),
		slog.Int("failed", report.Count(STATUS_FAILED)))
	return report
}

func (p *Pipeline) ProcessCompany(ctx context.Context, sheet spreadsheet.CompanySheet) []QuarterResult {
	columns := p.selectQuarters(sheet)

	results := make([]QuarterResult, 0, len(columns))
	for _, col := range columns {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.processQuarter(ctx, sheet.Company, col))
	}
	return results
}

// selectQuarters dates each column, walks them newest first until the
// cutoff, and returns the survivors oldest first.
func (p *Pipeline) selectQuarters(sheet spreadsheet.CompanySheet) []datedColumn {
	var dated []datedColumn
	for _, col := range sheet.Columns {
		callDate, cells, err := spreadsheet.CallDate(col)
		if err != nil {
			slog.Warn("[Pipeline] Skipping transcript column",
				slog.String("company", sheet.Company),
				slog.String("error", err.Error()))
			continue
		}
		dated = append(dated, datedColumn{
			quarter:  models.QuarterOf(callDate),
			callDate: callDate,
			cells:    cells,
		})
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[j].quarter.Before(dated[i].quarter)
	})

	selected := dated
	if cutoff := p.opts.Cutoff; cutoff != nil {
		for i, d := range dated {
			if !cutoff.Before(d.quarter) {
				slog.Info("[Pipeline] Reached cutoff quarter",
					slog.String("company", sheet.Company),
					slog.String("quarter", d.quarter.Label()),
					slog.String("cutoff", cutoff.Label()))
				selected = dated[:i]
				break
			}
		}
	}

	out := make([]datedColumn, len(selected))
	for i, d := range selected {
		out[len(selected)-1-i] = d
	}
	return out
}

func (p *Pipeline) alreadyProcessed(ctx context.Context, company string, q models.QuarterKey) (bool, error) {
	exists, err := p.sink.Exists(company, q)
	if err != nil || exists {
		return exists, err
	}
	if p.ledger == nil {
		return false, nil
	}

	done, err := p.ledger.IsProcessed(ctx, company, q.Label())
	if err != nil {
		slog.Warn("[Pipeline] Ledger lookup failed, relying on output files",
			slog.String("company", company),
			slog.String("error", err.Error()))
		return false, nil
	}
	return done, nil
}

func (p *Pipeline) processQuarter(ctx context.Context, company string, col datedColumn) QuarterResult {
	result := QuarterResult{Company: company, Quarter: col.quarter}
	logger := slog.With(
		slog.String("company", company),
		slog.String("quarter", col.quarter.Label()))

	done, err := p.alreadyProcessed(ctx, company, col.quarter)
	if err != nil {
		result.Status, result.Err = STATUS_FAILED, fmt.Errorf("failed to check existing output: %w", err)
		logger.Error("[Pipeline] Output check failed", slog.String("error", err.Error()))
		return result
	}
	if done {
		result.Status = STATUS_SKIPPED
		logger.Info("[Pipeline] Output already exists, skipping")
		return result
	}

	start := time.Now()
	records, failed := p.ScoreTranscript(ctx, col.cells)
	result.FailedChunks = failed
	if err := ctx.Err(); err != nil {
		result.Status, result.Err = STATUS_FAILED, err
		logger.Warn("[Pipeline] Canceled before the quarter finished scoring")
		return result
	}
	if failed > 0 && len(records) == 0 {
		result.Status, result.Err = STATUS_FAILED, fmt.Errorf("all %d chunks failed to score", failed)
		logger.Error("[Pipeline] No chunks could be scored", slog.Int("failed_chunks", failed))
		return result
	}

	// Persist before writing so a failed put leaves no score file behind.
	if p.records != nil {
		if err := p.records.PutRecords(ctx, company, col.quarter.Label(), records); err != nil {
			result.Status, result.Err = STATUS_FAILED, fmt.Errorf("failed to persist records: %w", err)
			logger.Error("[Pipeline] Failed to persist records", slog.String("error", err.Error()))
			return result
		}
	}

	path, err := p.sink.Write(company, col.quarter, col.callDate, records)
	if err != nil {
		result.Status, result.Err = STATUS_FAILED, err
		logger.Error("[Pipeline] Failed to write scores", slog.String("error", err.Error()))
		return result
	}
	result.Status, result.Path, result.Records = STATUS_PROCESSED, path, len(records)

	if p.ledger != nil {
		if err := p.ledger.MarkProcessed(ctx, company, col.quarter.Label()); err != nil {
			logger.Warn("[Pipeline] Failed to mark quarter processed", slog.String("error", err.Error()))
		}
	}

	logger.Info("[Pipeline] Quarter scored",
		slog.String("path", path),
		slog.Int("records", len(records)),
		slog.Int("failed_chunks", failed),
		slog.Duration("elapsed", time.Since(start)))
	return result
}

// ScoreTranscript runs one transcript body through tagging, chunking,
// scoring, weighting and the batch rescale. It returns the records in
// keyword, segment, chunk order and the number of chunks that failed.
func (p *Pipeline) ScoreTranscript(ctx context.Context, cells []string) ([]models.WeightedRecord, int) {
	segments := transcript.SplitParagraphs(cells)
	matches := transcript.FindMatches(segments, p.index.Keywords())
	jobs := transcript.ExplodeMatches(matches, p.opts.ChunkSize)

	scored, failed := ScoreChunks(ctx, p.scorer, jobs, p.opts.Workers)
	return weighting.Rescale(weighting.ApplyWeights(scored, p.index)), failed
}
