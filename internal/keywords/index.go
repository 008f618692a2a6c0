package keywords

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/spacesedan/callsignal/internal/models"
)

var ErrMissingField = errors.New("keyword row is missing a required field")

var importanceWeights = map[string]float64{
	models.IMPORTANCE_VERY_IMPORTANT:    1.5,
	models.IMPORTANCE_IMPORTANT:         1.0,
	models.IMPORTANCE_LESS_IMPORTANT:    0.5,
	models.IMPORTANCE_LESS_SO_IMPORTANT: 0.5,
}

// WeightOf maps an importance label or a raw numeric weight to a weight.
// Unknown labels return false.
func WeightOf(importance string) (float64, bool) {
	importance = strings.TrimSpace(importance)
	if w, ok := importanceWeights[importance]; ok {
		return w, true
	}
	if importance == "" {
		return 0, false
	}
	w, err := strconv.ParseFloat(importance, 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, false
	}
	return w, true
}

// Index is a read-only keyword lookup loaded once per run.
type Index struct {
	keywords []models.Keyword
	byText   map[string]models.Keyword
}

// NewIndex builds an index from raw rows. Rows without keyword text or
// category are skipped. Every loaded row keeps its place in match order,
// Lookup resolves a text to its first occurrence.
func NewIndex(rows []models.KeywordRow) *Index {
	idx := &Index{
		keywords: make([]models.Keyword, 0, len(rows)),
		byText:   make(map[string]models.Keyword, len(rows)),
	}

	for i, row := range rows {
		kw, err := keywordFromRow(row)
		if err != nil {
			slog.Warn("[KeywordIndex] Skipping keyword row",
				slog.Int("row", i),
				slog.String("error", err.Error()))
			continue
		}

		key := strings.ToLower(kw.Text)
		if _, dup := idx.byText[key]; dup {
			slog.Debug("[KeywordIndex] Duplicate keyword text", slog.String("keyword", kw.Text))
		} else {
			idx.byText[key] = kw
		}
		idx.keywords = append(idx.keywords, kw)
	}

	slog.Info("[KeywordIndex] Loaded keywords", slog.Int("count", len(idx.keywords)))
	return idx
}

func keywordFromRow(row models.KeywordRow) (models.Keyword, error) {
	text := trimmed(row.Keyword)
	if text == "" {
		return models.Keyword{}, fmt.Errorf("%w: Keyword", ErrMissingField)
	}
	category := trimmed(row.Category)
	if category == "" {
		return models.Keyword{}, fmt.Errorf("%w: Category", ErrMissingField)
	}

	return models.Keyword{
		Text:       text,
		Category:   category,
		Importance: trimmed(row.Importance),
	}, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func (idx *Index) Lookup(text string) (models.Keyword, bool) {
	kw, ok := idx.byText[strings.ToLower(strings.TrimSpace(text))]
	return kw, ok
}

// WeightFor resolves the weight of a keyword text through its importance.
func (idx *Index) WeightFor(text string) (float64, bool) {
	kw, ok := idx.Lookup(text)
	if !ok {
		return 0, false
	}
	return WeightOf(kw.Importance)
}

func (idx *Index) Keywords() []models.Keyword {
	return idx.keywords
}

func (idx *Index) Len() int {
	return len(idx.keywords)
}
