package spreadsheet

import (
	"fmt"
	"strings"

	"github.com/spacesedan/callsignal/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	HEADER_KEYWORD            = "Keyword"
	HEADER_KEYWORD_CATEGORY   = "Key Word Category"
	HEADER_CATEGORY           = "Category"
	HEADER_PROPOSED           = "Proposed"
	HEADER_WEIGHT             = "Weight"
	HEADER_PARAGRAPH          = "Paragraph"
	HEADER_SENTIMENT_SCORE    = "Sentiment Score"
	HEADER_MAGNITUDE          = "Sentiment Magnitude"
	HEADER_PROPOSED_WEIGHT    = "Proposed/Weight"
	HEADER_WEIGHTED_SENTIMENT = "Weighted Sentiment Score"
)

// ReadKeywordTable reads the first sheet of a keyword workbook.
func ReadKeywordTable(path string) ([]models.KeywordRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword table %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("keyword table %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword sheet: %w", err)
	}
	return KeywordRowsFromTable(rows)
}

// KeywordRowsFromTable maps a header row plus data rows onto keyword rows.
// Only the Keyword column is required in the header.
func KeywordRowsFromTable(rows [][]string) ([]models.KeywordRow, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("keyword table is empty")
	}

	cols := headerIndex(rows[0])
	keywordCol, ok := cols[HEADER_KEYWORD]
	if !ok {
		return nil, fmt.Errorf("keyword table has no %q column", HEADER_KEYWORD)
	}
	categoryCol := firstColumn(cols, HEADER_KEYWORD_CATEGORY, HEADER_CATEGORY)
	importanceCol := firstColumn(cols, HEADER_PROPOSED, HEADER_WEIGHT)

	out := make([]models.KeywordRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, models.KeywordRow{
			Keyword:    cell(row, keywordCol),
			Category:   cell(row, categoryCol),
			Importance: cell(row, importanceCol),
		})
	}
	return out, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, seen := cols[h]; !seen {
			cols[h] = i
		}
	}
	return cols
}

func firstColumn(cols map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i
		}
	}
	return -1
}

// cell returns nil for a missing column or a blank value.
func cell(row []string, col int) *string {
	if col < 0 || col >= len(row) {
		return nil
	}
	v := strings.TrimSpace(row[col])
	if v == "" {
		return nil
	}
	return &v
}
