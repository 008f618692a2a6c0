package transcript

import "github.com/spacesedan/callsignal/internal/models"

const DEFAULT_CHUNK_SIZE = 1024

// Chunk splits text into consecutive slices of chunkSize characters. The
// last slice may be shorter. Non-positive sizes fall back to the default.
func Chunk(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = DEFAULT_CHUNK_SIZE
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+chunkSize-1)/chunkSize)
	for start := 0; start < len(runes); start += chunkSize {
		end := min(start+chunkSize, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// ChunkJob is one unit of scoring work. Every chunk of a matched segment
// carries the match's keyword, so a long paragraph yields several records
// for the same keyword.
type ChunkJob struct {
	Seq   int
	Match models.KeywordMatch
	Text  string
}

// ExplodeMatches chunks every match in order and numbers the resulting jobs.
func ExplodeMatches(matches []models.KeywordMatch, chunkSize int) []ChunkJob {
	var jobs []ChunkJob
	for _, m := range matches {
		for _, c := range Chunk(m.Segment.Text, chunkSize) {
			jobs = append(jobs, ChunkJob{Seq: len(jobs), Match: m, Text: c})
		}
	}
	return jobs
}
