package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/spacesedan/callsignal/internal/models"
	"github.com/spacesedan/callsignal/internal/sentiment"
	"github.com/spacesedan/callsignal/internal/transcript"
	"github.com/spacesedan/callsignal/internal/utils"
)

const DEFAULT_WORKERS = 4

// ScoreChunks scores jobs on a bounded pool of workers. A failing chunk is
// logged and dropped without affecting its siblings. The returned records
// follow job sequence order regardless of completion order.
func ScoreChunks(ctx context.Context, scorer sentiment.TextScorer, jobs []transcript.ChunkJob, workers int) ([]models.ScoredRecord, int) {
	if workers <= 0 {
		workers = DEFAULT_WORKERS
	}
	workers = min(workers, max(len(jobs), 1))

	builder := utils.NewRecordBuilder[models.ScoredRecord](len(jobs))
	var failed atomic.Int64

	queue := make(chan transcript.ChunkJob)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				res, err := scorer.Score(ctx, job.Text)
				if err != nil {
					failed.Add(1)
					slog.Warn("[Scorer] Skipping chunk that failed to score",
						slog.Int("seq", job.Seq),
						slog.String("keyword", job.Match.Keyword.Text),
						slog.String("error", err.Error()))
					continue
				}
				builder.Add(job.Seq, models.ScoredRecord{
					Category:       job.Match.Keyword.Category,
					KeywordText:    job.Match.Keyword.Text,
					ParagraphText:  job.Text,
					SentimentScore: res.Score,
					Magnitude:      res.Magnitude,
				})
			}
		}()
	}

feed:
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case queue <- job:
		}
	}
	close(queue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		unscored := len(jobs) - builder.Size() - int(failed.Load())
		failed.Add(int64(unscored))
	}

	return builder.Build(), int(failed.Load())
}
