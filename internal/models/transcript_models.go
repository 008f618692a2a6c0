package models

// TranscriptColumn is one quarter's transcript as read from a company sheet.
type TranscriptColumn struct {
	Header string
	Cells  []string
}

type Segment struct {
	Text        string `json:"text"`
	SourceIndex int    `json:"source_index"`
}

type KeywordMatch struct {
	Keyword Keyword
	Segment Segment
}
