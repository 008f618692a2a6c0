package models

// CategorySummary is one category bucket of a company quarter. WeightedCount
// is the number of rows that carried a weighted score.
type CategorySummary struct {
	Category        string  `json:"category"`
	Count           int     `json:"count"`
	WeightedCount   int     `json:"weighted_count,omitempty"`
	Average         float64 `json:"average"`
	WeightedAverage float64 `json:"weighted_average"`
}

type SummaryKey struct {
	Company string `json:"company"`
	Period  string `json:"period"`
}

type CompanyQuarterSummary struct {
	SummaryKey
	Categories      []CategorySummary `json:"categories"`
	TotalAverage    *float64          `json:"total_average"`
	WeightedAverage *float64          `json:"weighted_average"`
}

// Fields flattens the summary into the persisted entity layout.
func (s CompanyQuarterSummary) Fields() map[string]any {
	fields := make(map[string]any, len(s.Categories)*3+4)
	for _, c := range s.Categories {
		fields[c.Category+"_Count"] = c.Count
		fields[c.Category+"_Average"] = c.Average
		fields[c.Category+"_Weighted Average"] = c.WeightedAverage
	}
	fields["Total Average"] = s.TotalAverage
	fields["Weighted Average"] = s.WeightedAverage
	fields["Yahoo Ticker"] = s.Company
	fields["Period"] = s.Period
	return fields
}
