package models

type ScoredRecord struct {
	Category       string  `json:"category" dynamodbav:"Category"`
	KeywordText    string  `json:"keyword" dynamodbav:"Keyword"`
	ParagraphText  string  `json:"paragraph" dynamodbav:"Paragraph"`
	SentimentScore float64 `json:"sentiment_score" dynamodbav:"Score"`
	Magnitude      float64 `json:"magnitude" dynamodbav:"Magnitude"`
}

// WeightedRecord is a ScoredRecord after keyword weighting. Weight and
// WeightedScore are nil when the keyword importance is unknown.
type WeightedRecord struct {
	ScoredRecord
	Weight        *float64 `json:"weight,omitempty" dynamodbav:"Weight"`
	WeightedScore *float64 `json:"weighted_score,omitempty" dynamodbav:"Weighted Sentiment"`
}
