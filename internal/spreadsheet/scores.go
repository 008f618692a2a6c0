package spreadsheet

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spacesedan/callsignal/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	SCORE_FILE_EXT = ".xlsx"
	SCORE_SHEET    = "Sheet1"
)

var scoreHeader = []string{
	HEADER_KEYWORD_CATEGORY,
	HEADER_KEYWORD,
	HEADER_PARAGRAPH,
	HEADER_SENTIMENT_SCORE,
	HEADER_MAGNITUDE,
	HEADER_PROPOSED_WEIGHT,
	HEADER_WEIGHTED_SENTIMENT,
}

var scoreFilePattern = regexp.MustCompile(`^CC_(.+)_Q(\d)(\d{4})`)

// WriteScores writes one quarter's records, replacing any file at path.
func WriteScores(path string, records []models.WeightedRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(scoreHeader))
	for i, h := range scoreHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(SCORE_SHEET, "A1", &header); err != nil {
		return fmt.Errorf("failed to write score header: %w", err)
	}

	for i, r := range records {
		row := []interface{}{
			r.Category,
			r.KeywordText,
			r.ParagraphText,
			r.SentimentScore,
			r.Magnitude,
			optionalCell(r.Weight),
			optionalCell(r.WeightedScore),
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SCORE_SHEET, addr, &row); err != nil {
			return fmt.Errorf("failed to write score row %d: %w", i, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create score directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save score file %s: %w", path, err)
	}
	return nil
}

func optionalCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// ReadScores reads a score file. Files written before weighting have no
// weight columns and yield nil weights.
func ReadScores(path string) ([]models.WeightedRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open score file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read score file %s: %w", path, err)
	}
	return RecordsFromTable(rows)
}

func RecordsFromTable(rows [][]string) ([]models.WeightedRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	cols := headerIndex(rows[0])
	for _, required := range scoreHeader[:5] {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("score table has no %q column", required)
		}
	}
	weightCol := firstColumn(cols, HEADER_PROPOSED_WEIGHT)
	weightedCol := firstColumn(cols, HEADER_WEIGHTED_SENTIMENT)

	records := make([]models.WeightedRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		score, err := floatCell(row, cols[HEADER_SENTIMENT_SCORE])
		if err != nil || score == nil {
			return nil, fmt.Errorf("row %d: invalid sentiment score: %v", i+2, err)
		}
		magnitude, err := floatCell(row, cols[HEADER_MAGNITUDE])
		if err != nil || magnitude == nil {
			return nil, fmt.Errorf("row %d: invalid magnitude: %v", i+2, err)
		}
		weight, err := floatCell(row, weightCol)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid weight: %w", i+2, err)
		}
		weighted, err := floatCell(row, weightedCol)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid weighted score: %w", i+2, err)
		}

		records = append(records, models.WeightedRecord{
			ScoredRecord: models.ScoredRecord{
				Category:       stringCell(row, cols[HEADER_KEYWORD_CATEGORY]),
				KeywordText:    stringCell(row, cols[HEADER_KEYWORD]),
				ParagraphText:  stringCell(row, cols[HEADER_PARAGRAPH]),
				SentimentScore: *score,
				Magnitude:      *magnitude,
			},
			Weight:        weight,
			WeightedScore: weighted,
		})
	}
	return records, nil
}

func stringCell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func floatCell(row []string, col int) (*float64, error) {
	v := cell(row, col)
	if v == nil {
		return nil, nil
	}
	f, err := strconv.ParseFloat(*v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ScoresDir is the on-disk root holding one subdirectory per company.
type ScoresDir struct {
	Root string
}

func (d ScoresDir) CompanyDir(company string) string {
	return filepath.Join(d.Root, company)
}

func (d ScoresDir) Path(company string, key models.QuarterKey, callDate time.Time) string {
	return filepath.Join(d.CompanyDir(company), key.FileName(company, callDate)+SCORE_FILE_EXT)
}

// Exists reports whether any score file for the company quarter is present,
// whatever its call date.
func (d ScoresDir) Exists(company string, key models.QuarterKey) (bool, error) {
	entries, err := os.ReadDir(d.CompanyDir(company))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	prefix := key.FilePrefix(company)
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), SCORE_FILE_EXT) {
			return true, nil
		}
	}
	return false, nil
}

func (d ScoresDir) Write(company string, key models.QuarterKey, callDate time.Time, records []models.WeightedRecord) (string, error) {
	path := d.Path(company, key, callDate)
	return path, WriteScores(path, records)
}

// Companies lists the company subdirectories under the root.
func (d ScoresDir) Companies() ([]string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, err
	}
	var companies []string
	for _, e := range entries {
		if e.IsDir() {
			companies = append(companies, e.Name())
		}
	}
	return companies, nil
}

type ScoreFile struct {
	Company string
	Quarter models.QuarterKey
	Path    string
}

// ListScoreFiles finds CC_ score files in dir, oldest quarter first.
func ListScoreFiles(dir string) ([]ScoreFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []ScoreFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SCORE_FILE_EXT) {
			continue
		}
		m := scoreFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		quarter, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		files = append(files, ScoreFile{
			Company: m[1],
			Quarter: models.QuarterKey{Year: year, Quarter: quarter},
			Path:    filepath.Join(dir, e.Name()),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Quarter.Before(files[j].Quarter)
	})
	return files, nil
}
