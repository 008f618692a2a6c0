package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spacesedan/callsignal/internal/models"
	"github.com/spacesedan/callsignal/internal/spreadsheet"
	"github.com/spacesedan/callsignal/internal/weighting"
)

// ReweightFile re-applies keyword weights to an existing score file and
// rescales it, overwriting the file in place.
func ReweightFile(path string, weights weighting.WeightSource) ([]models.WeightedRecord, error) {
	existing, err := spreadsheet.ReadScores(path)
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredRecord, len(existing))
	for i, r := range existing {
		scored[i] = r.ScoredRecord
	}

	records := weighting.Rescale(weighting.ApplyWeights(scored, weights))
	if err := spreadsheet.WriteScores(path, records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReweightAll re-weights every score file of every company under dir and,
// when writer is set, replaces the stored records of each quarter.
// Unreadable files are logged and skipped; persist failures are returned
// together once every file has been visited.
func ReweightAll(ctx context.Context, dir spreadsheet.ScoresDir, weights weighting.WeightSource, writer RecordWriter) (int, error) {
	companies, err := dir.Companies()
	if err != nil {
		return 0, fmt.Errorf("failed to list score directory: %w", err)
	}

	files := 0
	var persistErrs []error
	for _, company := range companies {
		scoreFiles, err := spreadsheet.ListScoreFiles(dir.CompanyDir(company))
		if err != nil {
			return files, fmt.Errorf("failed to list score files for %s: %w", company, err)
		}
		for _, f := range scoreFiles {
			if err := ctx.Err(); err != nil {
				return files, err
			}

			records, err := ReweightFile(f.Path, weights)
			if err != nil {
				slog.Warn("[Pipeline] Skipping score file",
					slog.String("path", f.Path),
					slog.String("error", err.Error()))
				continue
			}
			files++

			if writer != nil {
				if err := writer.PutRecords(ctx, f.Company, f.Quarter.Label(), records); err != nil {
					slog.Error("[Pipeline] Failed to persist re-weighted records",
						slog.String("company", f.Company),
						slog.String("quarter", f.Quarter.Label()),
						slog.String("error", err.Error()))
					persistErrs = append(persistErrs, fmt.Errorf("%s %s: %w", f.Company, f.Quarter.Label(), err))
					continue
				}
			}

			slog.Info("[Pipeline] Re-weighted score file",
				slog.String("company", company),
				slog.String("quarter", f.Quarter.Label()),
				slog.Int("records", len(records)))
		}
	}
	return files, errors.Join(persistErrs...)
}
