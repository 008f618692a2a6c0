package transcript

import (
	"strings"

	"github.com/spacesedan/callsignal/internal/models"
)

// SplitParagraphs turns transcript cells into paragraph segments. Each
// non-blank line of a cell becomes its own segment, in reading order.
func SplitParagraphs(cells []string) []models.Segment {
	var segments []models.Segment
	for _, cell := range cells {
		for _, line := range strings.Split(cell, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			segments = append(segments, models.Segment{
				Text:        line,
				SourceIndex: len(segments),
			})
		}
	}
	return segments
}
