package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spacesedan/callsignal/internal/aggregation"
	"github.com/spacesedan/callsignal/internal/models"
	"github.com/spacesedan/callsignal/internal/spreadsheet"
	"github.com/spacesedan/callsignal/internal/weighting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weights map[string]float64

func (w weights) WeightFor(text string) (float64, bool) {
	v, ok := w[text]
	return v, ok
}

func f64(v float64) *float64 { return &v }

func TestAggregateRecords(t *testing.T) {
	records := []models.WeightedRecord{
		{ScoredRecord: models.ScoredRecord{Category: "Macro", SentimentScore: 0.2}, WeightedScore: f64(1)},
		{ScoredRecord: models.ScoredRecord{Category: "Macro", SentimentScore: -0.4}},
		{ScoredRecord: models.ScoredRecord{Category: "Macro", SentimentScore: 0.5}, WeightedScore: f64(0.5)},
		{ScoredRecord: models.ScoredRecord{Category: "Regulation", SentimentScore: 0.9}, WeightedScore: f64(0)},
	}

	got := AggregateRecords("Macro", records)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 2, got.WeightedCount)
	assert.InDelta(t, 0.1, got.Average, 1e-12)
	assert.InDelta(t, 0.75, got.WeightedAverage, 1e-12)

	assert.Equal(t, models.CategorySummary{Category: "Sector trend"}, AggregateRecords("Sector trend", records))
}

// A single "assets" record scored 0.4 with weight Important: weighting
// gives 0.4, the one-row rescale gives 0, and the summary reprojects it to -1.
func TestSingleRecordScenario(t *testing.T) {
	ctx := context.Background()
	scored := []models.ScoredRecord{{
		Category:       "Financial metric - All",
		KeywordText:    "assets",
		ParagraphText:  "Total assets increased.",
		SentimentScore: 0.4,
		Magnitude:      0.3,
	}}

	weighted := weighting.ApplyWeights(scored, weights{"assets": 1.0})
	require.InDelta(t, 0.4, *weighted[0].WeightedScore, 1e-12)

	rescaled := weighting.Rescale(weighted)
	require.Equal(t, 0.0, *rescaled[0].WeightedScore)

	store := NewMemoryStore()
	require.NoError(t, store.PutRecords(ctx, "JPM", "Q3 2023", rescaled))

	key := models.SummaryKey{Company: "JPM", Period: "Q3 2023"}
	summary, err := aggregation.NewEngine(store).SummarizeAndStore(ctx, key)
	require.NoError(t, err)

	var fin models.CategorySummary
	for _, c := range summary.Categories {
		if c.Category == "Financial metric - All" {
			fin = c
		}
	}
	assert.Equal(t, 1, fin.Count)
	assert.InDelta(t, 0.4, fin.Average, 1e-12)
	assert.InDelta(t, -1.0, fin.WeightedAverage, 1e-12)

	require.NotNil(t, summary.WeightedAverage)
	assert.InDelta(t, -1.0, *summary.WeightedAverage, 1e-12)

	stored, ok := store.Summary(key)
	require.True(t, ok)
	assert.Equal(t, summary, stored)
}

func TestLoadScoreFiles(t *testing.T) {
	dir := spreadsheet.ScoresDir{Root: t.TempDir()}
	records := []models.WeightedRecord{
		{ScoredRecord: models.ScoredRecord{Category: "Macro", KeywordText: "gdp", ParagraphText: "GDP grew.", SentimentScore: 0.6}, Weight: f64(1), WeightedScore: f64(1)},
	}
	_, err := dir.Write("JPM", models.QuarterKey{Year: 2023, Quarter: 3}, time.Date(2023, 10, 13, 0, 0, 0, 0, time.UTC), records)
	require.NoError(t, err)
	_, err = dir.Write("WFC", models.QuarterKey{Year: 2024, Quarter: 1}, time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC), records)
	require.NoError(t, err)
	require.NoError(t, spreadsheet.WriteScores(filepath.Join(dir.CompanyDir("WFC"), "scratch.xlsx"), records))

	store := NewMemoryStore()
	require.NoError(t, store.LoadScoreFiles(context.Background(), dir))

	assert.ElementsMatch(t, []models.SummaryKey{
		{Company: "JPM", Period: "Q3 2023"},
		{Company: "WFC", Period: "Q1 2024"},
	}, store.Keys())

	agg, err := store.QueryAggregates(context.Background(), aggregation.Filter{Company: "JPM", Period: "Q3 2023", Category: "Macro"})
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Count)
	assert.InDelta(t, 1.0, agg.WeightedAverage, 1e-12)
}

func TestLoadScoreFilesCombinesQuarterDuplicates(t *testing.T) {
	dir := spreadsheet.ScoresDir{Root: t.TempDir()}
	q := models.QuarterKey{Year: 2023, Quarter: 4}
	_, err := dir.Write("JPM", q, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), []models.WeightedRecord{
		{ScoredRecord: models.ScoredRecord{Category: "Macro", KeywordText: "rates", ParagraphText: "Rates rose.", SentimentScore: 0.6}},
	})
	require.NoError(t, err)
	_, err = dir.Write("JPM", q, time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC), []models.WeightedRecord{
		{ScoredRecord: models.ScoredRecord{Category: "Macro", KeywordText: "rates", ParagraphText: "Rates held.", SentimentScore: -0.2}},
	})
	require.NoError(t, err)

	store := NewMemoryStore()
	require.NoError(t, store.LoadScoreFiles(context.Background(), dir))

	agg, err := store.QueryAggregates(context.Background(), aggregation.Filter{Company: "JPM", Period: "Q4 2023", Category: "Macro"})
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Count)
	assert.InDelta(t, 0.2, agg.Average, 1e-12)
}
