package aggregation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spacesedan/callsignal/internal/models"
)

type Filter struct {
	Company  string
	Period   string
	Category string
}

// Store is the narrow view of the external entity store the engine needs.
// QueryAggregates returns the raw bucket aggregates: Average over sentiment
// scores and WeightedAverage over the batch-rescaled [0, 1] weighted scores.
type Store interface {
	QueryAggregates(ctx context.Context, filter Filter) (models.CategorySummary, error)
	UpsertSummary(ctx context.Context, key models.SummaryKey, summary models.CompanyQuarterSummary) error
}

type Engine struct {
	store      Store
	categories []string
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, categories: models.Categories}
}

// Reproject maps a [0, 1] weighted average back onto [-1, 1].
func Reproject(x float64) float64 {
	return 2*x - 1
}

// CategoryScores queries every category bucket for one company quarter and
// reprojects each weighted average. Empty buckets, and buckets with no
// weighted rows, report zeros.
func (e *Engine) CategoryScores(ctx context.Context, key models.SummaryKey) ([]models.CategorySummary, error) {
	out := make([]models.CategorySummary, 0, len(e.categories))
	for _, category := range e.categories {
		agg, err := e.store.QueryAggregates(ctx, Filter{
			Company:  key.Company,
			Period:   key.Period,
			Category: category,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s aggregates: %w", category, err)
		}

		summary := models.CategorySummary{
			Category:      category,
			Count:         agg.Count,
			WeightedCount: agg.WeightedCount,
		}
		if agg.Count > 0 {
			summary.Average = agg.Average
		}
		if agg.WeightedCount > 0 {
			summary.WeightedAverage = Reproject(agg.WeightedAverage)
		}
		out = append(out, summary)
	}
	return out, nil
}

// Totals returns the count-weighted means of the category averages. Both
// are nil when no category has any records.
func Totals(categories []models.CategorySummary) (total *float64, weighted *float64) {
	sum, weightedSum, count := 0.0, 0.0, 0
	for _, c := range categories {
		sum += c.Average * float64(c.Count)
		weightedSum += c.WeightedAverage * float64(c.Count)
		count += c.Count
	}
	if count == 0 {
		return nil, nil
	}

	t := sum / float64(count)
	w := weightedSum / float64(count)
	return &t, &w
}

// Summarize builds the company quarter summary without persisting it.
func (e *Engine) Summarize(ctx context.Context, key models.SummaryKey) (models.CompanyQuarterSummary, error) {
	categories, err := e.CategoryScores(ctx, key)
	if err != nil {
		return models.CompanyQuarterSummary{}, err
	}

	total, weighted := Totals(categories)
	if total == nil {
		slog.Warn("[Aggregation] No scored records for company quarter",
			slog.String("company", key.Company),
			slog.String("period", key.Period))
	}

	return models.CompanyQuarterSummary{
		SummaryKey:      key,
		Categories:      categories,
		TotalAverage:    total,
		WeightedAverage: weighted,
	}, nil
}

// SummarizeAndStore summarizes one company quarter and upserts the result,
// replacing any earlier summary for the same key.
func (e *Engine) SummarizeAndStore(ctx context.Context, key models.SummaryKey) (models.CompanyQuarterSummary, error) {
	summary, err := e.Summarize(ctx, key)
	if err != nil {
		return summary, err
	}

	if err := e.store.UpsertSummary(ctx, key, summary); err != nil {
		return summary, fmt.Errorf("failed to store summary for %s %s: %w", key.Company, key.Period, err)
	}

	slog.Info("[Aggregation] Stored company quarter summary",
		slog.String("company", key.Company),
		slog.String("period", key.Period))
	return summary, nil
}
