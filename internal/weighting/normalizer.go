package weighting

import (
	"log/slog"

	"github.com/spacesedan/callsignal/internal/models"
)

// WeightSource resolves the importance weight of a keyword text.
type WeightSource interface {
	WeightFor(keywordText string) (float64, bool)
}

// ApplyWeights sets WeightedScore = SentimentScore * weight. Records whose
// keyword has no known weight keep a nil weight and weighted score.
func ApplyWeights(records []models.ScoredRecord, weights WeightSource) []models.WeightedRecord {
	out := make([]models.WeightedRecord, len(records))
	unweighted := 0
	for i, r := range records {
		out[i] = models.WeightedRecord{ScoredRecord: r}

		w, ok := weights.WeightFor(r.KeywordText)
		if !ok {
			unweighted++
			continue
		}
		weighted := r.SentimentScore * w
		out[i].Weight = &w
		out[i].WeightedScore = &weighted
	}

	if unweighted > 0 {
		slog.Warn("[Weighting] Records without a recognized weight",
			slog.Int("count", unweighted),
			slog.Int("total", len(records)))
	}
	return out
}

// Rescale min-max scales the non-nil weighted scores of one batch onto
// [0, 1]. A constant column (including a single record) scales to 0.
// Nil weighted scores are left nil and do not affect the range.
func Rescale(records []models.WeightedRecord) []models.WeightedRecord {
	out := make([]models.WeightedRecord, len(records))
	copy(out, records)

	lo, hi, n := 0.0, 0.0, 0
	for _, r := range out {
		if r.WeightedScore == nil {
			continue
		}
		x := *r.WeightedScore
		if n == 0 || x < lo {
			lo = x
		}
		if n == 0 || x > hi {
			hi = x
		}
		n++
	}

	span := hi - lo
	for i, r := range out {
		if r.WeightedScore == nil {
			continue
		}
		scaled := 0.0
		if span > 0 {
			scaled = (*r.WeightedScore - lo) / span
		}
		out[i].WeightedScore = &scaled
	}
	return out
}
