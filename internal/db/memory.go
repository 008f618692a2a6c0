package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spacesedan/callsignal/internal/aggregation"
	"github.com/spacesedan/callsignal/internal/models"
	"github.com/spacesedan/callsignal/internal/spreadsheet"
)

// MemoryStore keeps records and summaries in process. It backs tests and
// summarizing straight from score files without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[models.SummaryKey][]models.WeightedRecord
	summaries map[models.SummaryKey]models.CompanyQuarterSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[models.SummaryKey][]models.WeightedRecord),
		summaries: make(map[models.SummaryKey]models.CompanyQuarterSummary),
	}
}

// PutRecords replaces the records stored for a company period.
func (m *MemoryStore) PutRecords(_ context.Context, company, period string, records []models.WeightedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[models.SummaryKey{Company: company, Period: period}] = append([]models.WeightedRecord(nil), records...)
	return nil
}

// appendRecords adds to a company period instead of replacing it, so
// several score files for one quarter are all counted.
func (m *MemoryStore) appendRecords(company, period, path string, records []models.WeightedRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.SummaryKey{Company: company, Period: period}
	if _, ok := m.records[key]; ok {
		slog.Warn("[MemoryStore] Several score files for one quarter, combining them",
			slog.String("company", company),
			slog.String("period", period),
			slog.String("path", path))
	}
	m.records[key] = append(m.records[key], records...)
}

func (m *MemoryStore) QueryAggregates(_ context.Context, filter aggregation.Filter) (models.CategorySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.records[models.SummaryKey{Company: filter.Company, Period: filter.Period}]
	return AggregateRecords(filter.Category, records), nil
}

func (m *MemoryStore) UpsertSummary(_ context.Context, key models.SummaryKey, summary models.CompanyQuarterSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.summaries[key] = summary
	return nil
}

func (m *MemoryStore) Summary(key models.SummaryKey) (models.CompanyQuarterSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.summaries[key]
	return s, ok
}

// Keys lists the company periods that have records.
func (m *MemoryStore) Keys() []models.SummaryKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]models.SummaryKey, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	return keys
}

// LoadScoreFiles reads every company's score files under dir into the store.
func (m *MemoryStore) LoadScoreFiles(ctx context.Context, dir spreadsheet.ScoresDir) error {
	companies, err := dir.Companies()
	if err != nil {
		return fmt.Errorf("failed to list score directory: %w", err)
	}

	for _, company := range companies {
		files, err := spreadsheet.ListScoreFiles(dir.CompanyDir(company))
		if err != nil {
			return fmt.Errorf("failed to list score files for %s: %w", company, err)
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := spreadsheet.ReadScores(file.Path)
			if err != nil {
				slog.Warn("[MemoryStore] Skipping unreadable score file",
					slog.String("path", file.Path),
					slog.String("error", err.Error()))
				continue
			}
			m.appendRecords(file.Company, file.Quarter.Label(), file.Path, records)
		}
	}
	return nil
}
