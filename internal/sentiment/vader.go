package sentiment

import (
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
)

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

// PlainText renders markdown-ish transcript text down to plain words so
// the lexicon sees no markup or links.
func PlainText(input string) string {
	input = RemoveLinks(input)
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plain := html.UnescapeString(tagPattern.ReplaceAllString(string(output), " "))
	return strings.Join(strings.Fields(plain), " ")
}

// Lexicon scores one sentence on [-1, 1].
type Lexicon interface {
	Compound(sentence string) float64
}

type VaderLexicon struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderLexicon() *VaderLexicon {
	return &VaderLexicon{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderLexicon) Compound(sentence string) float64 {
	return v.analyzer.PolarityScores(PlainText(sentence)).Compound
}

// Magnitude sums the absolute compound score of every sentence. It grows
// with sentence count and is not normalized.
func Magnitude(sentences []string, lexicon Lexicon) float64 {
	total := 0.0
	for _, s := range sentences {
		total += math.Abs(lexicon.Compound(s))
	}
	return total
}
