package spreadsheet

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spacesedan/callsignal/internal/models"
	"github.com/xuri/excelize/v2"
)

const TRANSCRIPT_HEADER_PREFIX = "FINAL TRANSCRIPT"

// Excel serial day numbers for 1970-01-01 and 2100-01-01. Numbers outside
// this range are treated as text rather than dates.
const (
	MIN_DATE_SERIAL = 25569
	MAX_DATE_SERIAL = 73051
)

var ErrNoTranscriptDate = errors.New("transcript column has no call date")

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01-02-06",
	"1/2/2006",
	"1/2/06",
	"01/02/2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02-Jan-2006",
	"Monday, January 2, 2006",
}

type CompanySheet struct {
	Company string
	Columns []models.TranscriptColumn
}

// ReadWorkbook reads every sheet as one company; each column is one
// quarter's transcript with its header in the first row. Only a workbook
// that cannot be opened is an error; an unreadable sheet skips that company.
func ReadWorkbook(path string) ([]CompanySheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	return readSheets(f), nil
}

type sheetSource interface {
	GetSheetList() []string
	GetCols(sheet string, opts ...excelize.Options) ([][]string, error)
}

func readSheets(src sheetSource) []CompanySheet {
	var sheets []CompanySheet
	for _, name := range src.GetSheetList() {
		cols, err := src.GetCols(name, excelize.Options{RawCellValue: true})
		if err != nil {
			slog.Warn("[Spreadsheet] Skipping unreadable company sheet",
				slog.String("sheet", name),
				slog.String("error", err.Error()))
			continue
		}
		columns := ColumnsFromCells(cols)
		if len(columns) == 0 {
			continue
		}
		sheets = append(sheets, CompanySheet{Company: name, Columns: columns})
	}
	return sheets
}

func ColumnsFromCells(cols [][]string) []models.TranscriptColumn {
	out := make([]models.TranscriptColumn, 0, len(cols))
	for _, col := range cols {
		if len(col) == 0 {
			continue
		}
		out = append(out, models.TranscriptColumn{
			Header: strings.TrimSpace(col[0]),
			Cells:  col[1:],
		})
	}
	return out
}

// CallDate derives the call date of a transcript column and returns the
// cells that make up the transcript body. A date in the first cell takes
// precedence and is dropped from the body; otherwise the header is parsed
// after stripping the FINAL TRANSCRIPT prefix.
func CallDate(col models.TranscriptColumn) (time.Time, []string, error) {
	if len(col.Cells) > 0 {
		if t, ok := ParseDate(col.Cells[0]); ok {
			return t, col.Cells[1:], nil
		}
	}

	header := strings.TrimSpace(strings.TrimPrefix(col.Header, TRANSCRIPT_HEADER_PREFIX))
	if t, ok := ParseDate(header); ok {
		return t, col.Cells, nil
	}
	return time.Time{}, nil, fmt.Errorf("%w: header %q", ErrNoTranscriptDate, col.Header)
}

// ParseDate accepts common date layouts and Excel serial day numbers.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial < MIN_DATE_SERIAL || serial > MAX_DATE_SERIAL {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
