package transcript

import (
	"strings"

	"github.com/spacesedan/callsignal/internal/models"
)

// FindMatches returns one match per (keyword, segment) pair where the
// segment contains the keyword, case-insensitively. Matches are ordered by
// keyword first, then by segment. A paragraph matching several keywords is
// reported once per keyword.
func FindMatches(segments []models.Segment, keywords []models.Keyword) []models.KeywordMatch {
	lowered := make([]string, len(segments))
	for i, s := range segments {
		lowered[i] = strings.ToLower(s.Text)
	}

	var matches []models.KeywordMatch
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw.Text))
		if needle == "" {
			continue
		}
		for i, text := range lowered {
			if strings.Contains(text, needle) {
				matches = append(matches, models.KeywordMatch{
					Keyword: kw,
					Segment: segments[i],
				})
			}
		}
	}
	return matches
}
