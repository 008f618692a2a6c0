package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type QuarterKey struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

func QuarterOf(t time.Time) QuarterKey {
	return QuarterKey{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// Before reports whether q sorts strictly earlier than other.
func (q QuarterKey) Before(other QuarterKey) bool {
	if q.Year != other.Year {
		return q.Year < other.Year
	}
	return q.Quarter < other.Quarter
}

func (q QuarterKey) Valid() bool {
	return q.Quarter >= 1 && q.Quarter <= 4
}

// Label is the period label used as the store key, e.g. "Q3 2023".
func (q QuarterKey) Label() string {
	return fmt.Sprintf("Q%d %d", q.Quarter, q.Year)
}

// FilePrefix is the date-independent part of a score file name.
func (q QuarterKey) FilePrefix(company string) string {
	return fmt.Sprintf("CC_%s_Q%d%d_", company, q.Quarter, q.Year)
}

// FileName builds CC_{company}_Q{quarter}{year}_{month}_{day}_{year}.
func (q QuarterKey) FileName(company string, callDate time.Time) string {
	return fmt.Sprintf("%s%d_%d_%d", q.FilePrefix(company), int(callDate.Month()), callDate.Day(), callDate.Year())
}

var quarterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d{4})\s*[-:/ ]?\s*[Qq]?([1-4])$`),
	regexp.MustCompile(`^[Qq]([1-4])\s*[-:/ ]?\s*(\d{4})$`),
}

// ParseQuarterKey accepts "2023Q2", "2023-2", "2023:2", "Q2 2023" and "Q22023".
func ParseQuarterKey(s string) (QuarterKey, error) {
	s = strings.TrimSpace(s)
	for i, re := range quarterPatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		yearPart, quarterPart := m[1], m[2]
		if i == 1 {
			yearPart, quarterPart = m[2], m[1]
		}
		year, _ := strconv.Atoi(yearPart)
		quarter, _ := strconv.Atoi(quarterPart)
		return QuarterKey{Year: year, Quarter: quarter}, nil
	}
	return QuarterKey{}, fmt.Errorf("invalid quarter %q", s)
}
