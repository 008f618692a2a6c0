package db

import "github.com/spacesedan/callsignal/internal/models"

// AggregateRecords computes the raw bucket aggregate for one category:
// sentiment averaged over every row, weighted score averaged over the rows
// that have one.
func AggregateRecords(category string, records []models.WeightedRecord) models.CategorySummary {
	summary := models.CategorySummary{Category: category}

	var scoreSum, weightedSum float64
	for _, r := range records {
		if r.Category != category {
			continue
		}
		summary.Count++
		scoreSum += r.SentimentScore
		if r.WeightedScore != nil {
			summary.WeightedCount++
			weightedSum += *r.WeightedScore
		}
	}

	if summary.Count > 0 {
		summary.Average = scoreSum / float64(summary.Count)
	}
	if summary.WeightedCount > 0 {
		summary.WeightedAverage = weightedSum / float64(summary.WeightedCount)
	}
	return summary
}
