package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spacesedan/callsignal/internal/keywords"
	"github.com/spacesedan/callsignal/internal/models"
	"github.com/spacesedan/callsignal/internal/sentiment"
	"github.com/spacesedan/callsignal/internal/spreadsheet"
	"github.com/spacesedan/callsignal/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScorer scores by text length and fails any chunk containing FAIL.
type fakeScorer struct {
	mu    sync.Mutex
	calls int
	delay func(text string) time.Duration
}

func (f *fakeScorer) Score(ctx context.Context, text string) (sentiment.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay != nil {
		time.Sleep(f.delay(text))
	}
	if strings.Contains(text, "FAIL") {
		return sentiment.Result{}, fmt.Errorf("%w: classifier rejected input", sentiment.ErrScoring)
	}
	return sentiment.Result{Score: float64(len(text)) / 100, Magnitude: 0.5}, nil
}

type memorySink struct {
	mu     sync.Mutex
	tables map[string][]models.WeightedRecord
	writes int
}

func newMemorySink() *memorySink {
	return &memorySink{tables: map[string][]models.WeightedRecord{}}
}

func (m *memorySink) Exists(company string, key models.QuarterKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.tables {
		if strings.HasPrefix(name, key.FilePrefix(company)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySink) Write(company string, key models.QuarterKey, callDate time.Time, records []models.WeightedRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := key.FileName(company, callDate)
	m.tables[name] = records
	m.writes++
	return name, nil
}

type fakeLedger struct {
	processed map[string]bool
	err       error
}

func (l *fakeLedger) IsProcessed(_ context.Context, company, period string) (bool, error) {
	return l.processed[company+"/"+period], l.err
}

func (l *fakeLedger) MarkProcessed(_ context.Context, company, period string) error {
	l.processed[company+"/"+period] = true
	return nil
}

type recordingWriter struct {
	puts  map[string]int
	calls int
	err   error
}

func (r *recordingWriter) PutRecords(_ context.Context, company, period string, records []models.WeightedRecord) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.puts[company+"/"+period] = len(records)
	return nil
}

func s(v string) *string { return &v }

func testIndex() *keywords.Index {
	return keywords.NewIndex([]models.KeywordRow{
		{Keyword: s("assets"), Category: s("Financial metric - All"), Importance: s("Important")},
		{Keyword: s("rates"), Category: s("Macro"), Importance: s("Very Important")},
		{Keyword: s("capital"), Category: s("Regulation"), Importance: s("Unrated")},
	})
}

func column(header string, cells ...string) models.TranscriptColumn {
	return models.TranscriptColumn{Header: header, Cells: cells}
}

func TestScoreTranscriptOrderAndChunkDoubleCounting(t *testing.T) {
	p := New(&fakeScorer{}, testIndex(), newMemorySink(), Options{ChunkSize: 20, Workers: 3})

	// 40 characters, matches both "assets" and "rates".
	para := "Higher rates lifted assets this quarter."
	require.Len(t, para, 40)

	records, failed := p.ScoreTranscript(context.Background(), []string{para, "Nothing to see."})
	require.Zero(t, failed)
	require.Len(t, records, 4, "two keywords times two chunks")

	assert.Equal(t, "assets", records[0].KeywordText)
	assert.Equal(t, "assets", records[1].KeywordText)
	assert.Equal(t, "rates", records[2].KeywordText)
	assert.Equal(t, "rates", records[3].KeywordText)
	assert.Equal(t, para[:20], records[0].ParagraphText)
	assert.Equal(t, para[20:], records[1].ParagraphText)

	total := 0.0
	for _, r := range records {
		total += r.Magnitude
	}
	assert.InDelta(t, 2.0, total, 1e-12, "the same text contributes magnitude once per keyword and chunk")

	assert.Equal(t, 1.0, *records[0].Weight)
	assert.Equal(t, 1.5, *records[2].Weight)
	for _, r := range records {
		require.NotNil(t, r.WeightedScore)
		assert.GreaterOrEqual(t, *r.WeightedScore, 0.0)
		assert.LessOrEqual(t, *r.WeightedScore, 1.0)
	}
}

func TestScoreTranscriptUnknownWeight(t *testing.T) {
	p := New(&fakeScorer{}, testIndex(), newMemorySink(), Options{})

	records, _ := p.ScoreTranscript(context.Background(), []string{"Our capital position is strong.", "Assets grew."})
	require.Len(t, records, 2)
	assert.Equal(t, "assets", records[0].KeywordText)
	assert.Equal(t, 0.0, *records[0].WeightedScore, "only weighted row rescales to 0")
	assert.Equal(t, "capital", records[1].KeywordText)
	assert.Nil(t, records[1].Weight)
	assert.Nil(t, records[1].WeightedScore)
}

func TestScoreChunksIsolatesFailures(t *testing.T) {
	kw := models.Keyword{Text: "rates", Category: "Macro"}
	jobs := transcript.ExplodeMatches([]models.KeywordMatch{
		{Keyword: kw, Segment: models.Segment{Text: "rates up"}},
		{Keyword: kw, Segment: models.Segment{Text: "rates FAIL"}},
		{Keyword: kw, Segment: models.Segment{Text: "rates down"}},
	}, 100)

	records, failed := ScoreChunks(context.Background(), &fakeScorer{}, jobs, 2)
	assert.Equal(t, 1, failed)
	require.Len(t, records, 2)
	assert.Equal(t, "rates up", records[0].ParagraphText)
	assert.Equal(t, "rates down", records[1].ParagraphText)
}

func TestScoreChunksRestoresOrderUnderConcurrency(t *testing.T) {
	kw := models.Keyword{Text: "x", Category: "Macro"}
	var matches []models.KeywordMatch
	for i := 0; i < 24; i++ {
		matches = append(matches, models.KeywordMatch{Keyword: kw, Segment: models.Segment{Text: fmt.Sprintf("x%02d", i), SourceIndex: i}})
	}
	jobs := transcript.ExplodeMatches(matches, 100)

	// earlier jobs take longer so they finish last
	scorer := &fakeScorer{delay: func(text string) time.Duration {
		var n int
		fmt.Sscanf(text, "x%d", &n)
		return time.Duration(24-n) * time.Millisecond
	}}

	records, failed := ScoreChunks(context.Background(), scorer, jobs, 8)
	require.Zero(t, failed)
	require.Len(t, records, 24)
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("x%02d", i), r.ParagraphText)
	}
}

func TestScoreChunksCanceled(t *testing.T) {
	kw := models.Keyword{Text: "x", Category: "Macro"}
	jobs := transcript.ExplodeMatches([]models.KeywordMatch{{Keyword: kw, Segment: models.Segment{Text: "x"}}}, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scorer := &fakeScorer{}
	records, failed := ScoreChunks(ctx, scorer, jobs, 1)
	assert.Equal(t, len(jobs), len(records)+failed)
}

func TestProcessWorkbookIsIdempotent(t *testing.T) {
	sink := newMemorySink()
	writer := &recordingWriter{puts: map[string]int{}}
	p := New(&fakeScorer{}, testIndex(), sink, Options{}).WithRecordWriter(writer)

	sheets := []spreadsheet.CompanySheet{{
		Company: "JPM",
		Columns: []models.TranscriptColumn{
			column("FINAL TRANSCRIPT 2023-10-13", "Rates were higher."),
			column("Q2", "2023-07-14", "Assets grew."),
		},
	}}

	first := p.ProcessWorkbook(context.Background(), sheets)
	require.Len(t, first.Results, 2)
	assert.Equal(t, 2, first.Count(STATUS_PROCESSED))
	assert.Equal(t, models.QuarterKey{Year: 2023, Quarter: 3}, first.Results[0].Quarter, "oldest first")
	assert.Equal(t, models.QuarterKey{Year: 2023, Quarter: 4}, first.Results[1].Quarter)
	assert.Equal(t, 2, sink.writes)
	assert.Contains(t, sink.tables, "CC_JPM_Q42023_10_13_2023")
	assert.Equal(t, map[string]int{"JPM/Q4 2023": 1, "JPM/Q3 2023": 1}, writer.puts)

	second := p.ProcessWorkbook(context.Background(), sheets)
	assert.Equal(t, 2, second.Count(STATUS_SKIPPED))
	assert.Equal(t, 2, sink.writes, "no output rewritten")
}

func TestProcessCompanyCutoff(t *testing.T) {
	sink := newMemorySink()
	cutoff := models.QuarterKey{Year: 2023, Quarter: 2}
	p := New(&fakeScorer{}, testIndex(), sink, Options{Cutoff: &cutoff})

	results := p.ProcessCompany(context.Background(), spreadsheet.CompanySheet{
		Company: "WFC",
		Columns: []models.TranscriptColumn{
			column("FINAL TRANSCRIPT 2023-01-13", "Rates rose."),
			column("FINAL TRANSCRIPT 2023-10-13", "Rates fell."),
			column("FINAL TRANSCRIPT 2023-04-14", "Rates held."),
			column("FINAL TRANSCRIPT 2024-01-12", "Rates eased."),
			column("Notes", "no date here"),
		},
	})

	require.Len(t, results, 2)
	assert.Equal(t, models.QuarterKey{Year: 2023, Quarter: 4}, results[0].Quarter)
	assert.Equal(t, models.QuarterKey{Year: 2024, Quarter: 1}, results[1].Quarter)
	assert.Equal(t, 2, sink.writes)
}

func TestProcessQuarterHonorsLedger(t *testing.T) {
	sink := newMemorySink()
	ledger := &fakeLedger{processed: map[string]bool{"JPM/Q3 2023": true}}
	p := New(&fakeScorer{}, testIndex(), sink, Options{}).WithLedger(ledger)

	results := p.ProcessCompany(context.Background(), spreadsheet.CompanySheet{
		Company: "JPM",
		Columns: []models.TranscriptColumn{
			column("FINAL TRANSCRIPT 2023-07-14", "Assets grew."),
			column("FINAL TRANSCRIPT 2023-10-13", "Assets fell."),
		},
	})

	require.Len(t, results, 2)
	assert.Equal(t, STATUS_SKIPPED, results[0].Status)
	assert.Equal(t, STATUS_PROCESSED, results[1].Status)
	assert.True(t, ledger.processed["JPM/Q4 2023"])
}

func TestProcessQuarterLedgerErrorFallsBackToFiles(t *testing.T) {
	ledger := &fakeLedger{processed: map[string]bool{}, err: errors.New("connection refused")}
	p := New(&fakeScorer{}, testIndex(), newMemorySink(), Options{}).WithLedger(ledger)

	results := p.ProcessCompany(context.Background(), spreadsheet.CompanySheet{
		Company: "JPM",
		Columns: []models.TranscriptColumn{column("FINAL TRANSCRIPT 2023-07-14", "Assets grew.")},
	})
	require.Len(t, results, 1)
	assert.Equal(t, STATUS_PROCESSED, results[0].Status)
}

func TestProcessQuarterAllChunksFailed(t *testing.T) {
	sink := newMemorySink()
	p := New(&fakeScorer{}, testIndex(), sink, Options{})

	results := p.ProcessCompany(context.Background(), spreadsheet.CompanySheet{
		Company: "JPM",
		Columns: []models.TranscriptColumn{column("FINAL TRANSCRIPT 2023-07-14", "Assets FAIL.")},
	})
	require.Len(t, results, 1)
	assert.Equal(t, STATUS_FAILED, results[0].Status)
	assert.Equal(t, 1, results[0].FailedChunks)
	assert.Zero(t, sink.writes, "a quarter with nothing scored is retried next run")
}

func TestProcessQuarterWithoutMatchesWritesEmptyTable(t *testing.T) {
	sink := newMemorySink()
	p := New(&fakeScorer{}, testIndex(), sink, Options{})

	results := p.ProcessCompany(context.Background(), spreadsheet.CompanySheet{
		Company: "JPM",
		Columns: []models.TranscriptColumn{column("FINAL TRANSCRIPT 2023-07-14", "Operator: welcome.")},
	})
	require.Len(t, results, 1)
	assert.Equal(t, STATUS_PROCESSED, results[0].Status)
	assert.Zero(t, results[0].Records)
	assert.Equal(t, 1, sink.writes)
}

func TestProcessQuarterPersistFailureIsRetried(t *testing.T) {
	sink := newMemorySink()
	writer := &recordingWriter{puts: map[string]int{}, err: errors.New("dynamodb throttled")}
	ledger := &fakeLedger{processed: map[string]bool{}}
	p := New(&fakeScorer{}, testIndex(), sink, Options{}).WithRecordWriter(writer).WithLedger(ledger)

	sheets := []spreadsheet.CompanySheet{{
		Company: "JPM",
		Columns: []models.TranscriptColumn{column("FINAL TRANSCRIPT 2023-07-14", "Assets grew.")},
	}}

	first := p.ProcessWorkbook(context.Background(), sheets)
	require.Len(t, first.Results, 1)
	assert.Equal(t, STATUS_FAILED, first.Results[0].Status)
	assert.ErrorContains(t, first.Results[0].Err, "dynamodb throttled")
	assert.Equal(t, 1, first.Count(STATUS_FAILED))
	assert.Zero(t, sink.writes)
	assert.Empty(t, ledger.processed)

	writer.err = nil
	second := p.ProcessWorkbook(context.Background(), sheets)
	require.Len(t, second.Results, 1)
	assert.Equal(t, STATUS_PROCESSED, second.Results[0].Status)
	assert.Equal(t, 2, writer.calls)
	assert.Equal(t, map[string]int{"JPM/Q3 2023": 1}, writer.puts)
	assert.True(t, ledger.processed["JPM/Q3 2023"])
	assert.Equal(t, 1, sink.writes)
}
