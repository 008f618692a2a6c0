package models

// Importance labels used by the keyword table's Proposed/Weight column.
const (
	IMPORTANCE_VERY_IMPORTANT = "Very Important"
	IMPORTANCE_IMPORTANT      = "Important"
	IMPORTANCE_LESS_IMPORTANT = "Less Important"
	// older keyword sheets spell the lowest tier this way
	IMPORTANCE_LESS_SO_IMPORTANT = "Less so important"
)

// Fixed category set used when summarizing a company quarter.
var Categories = []string{
	"Macro",
	"Sector trend",
	"Financial metric - All",
	"Financial metric - Bank",
	"Regulation",
}

// KeywordRow is one raw row of the keyword table. Nil fields were absent
// or blank in the source sheet.
type KeywordRow struct {
	Keyword    *string
	Category   *string
	Importance *string
}

type Keyword struct {
	Text       string `json:"keyword"`
	Category   string `json:"category"`
	Importance string `json:"importance"`
}
