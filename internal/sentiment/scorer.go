package sentiment

import (
	"context"
	"errors"
	"fmt"
)

var ErrScoring = errors.New("sentiment scoring failed")

type Result struct {
	Score     float64
	Magnitude float64
}

// TextScorer is the capability the transcript pipeline depends on.
type TextScorer interface {
	Score(ctx context.Context, text string) (Result, error)
}

// SignedScore maps the expected class index (1..3) of p onto [-1, 1]:
// p_neg + 2*p_neu + 3*p_pos - 2.
func SignedScore(p Probabilities) float64 {
	return p[NEGATIVE] + 2*p[NEUTRAL] + 3*p[POSITIVE] - 2
}

// Scorer combines a classifier's class distribution with per-sentence
// lexicon intensity.
type Scorer struct {
	classifier Classifier
	lexicon    Lexicon
	splitter   SentenceSplitter
}

func NewScorer(classifier Classifier, lexicon Lexicon, splitter SentenceSplitter) *Scorer {
	return &Scorer{
		classifier: classifier,
		lexicon:    lexicon,
		splitter:   splitter,
	}
}

func (s *Scorer) Score(ctx context.Context, text string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("%w: recovered panic: %v", ErrScoring, r)
		}
	}()

	probs, err := s.classifier.Classify(ctx, text)
	if err != nil {
		if errors.Is(err, ErrScoring) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %w", ErrScoring, err)
	}

	return Result{
		Score:     SignedScore(probs),
		Magnitude: Magnitude(s.splitter.Split(text), s.lexicon),
	}, nil
}
