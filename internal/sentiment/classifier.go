package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// Probabilities is a 3-class distribution in the fixed order
// negative, neutral, positive.
type Probabilities [3]float64

const (
	NEGATIVE = iota
	NEUTRAL
	POSITIVE
)

var classIndex = map[string]int{
	"negative": NEGATIVE,
	"neutral":  NEUTRAL,
	"positive": POSITIVE,
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Probabilities, error)
}

// ProbabilitiesFromLabels orders labelled class scores into Probabilities.
// Label matching ignores case and every class must be present.
func ProbabilitiesFromLabels(scores map[string]float64) (Probabilities, error) {
	var p Probabilities
	seen := 0
	for label, score := range scores {
		i, ok := classIndex[strings.ToLower(strings.TrimSpace(label))]
		if !ok {
			return p, fmt.Errorf("%w: unexpected class label %q", ErrScoring, label)
		}
		p[i] = score
		seen |= 1 << i
	}
	if seen != 0b111 {
		return p, fmt.Errorf("%w: classifier returned %d of 3 classes", ErrScoring, len(scores))
	}
	return p, nil
}

// HugotClassifier runs a local ONNX sequence-classification model
// (a finBERT export) through a hugot text classification pipeline.
type HugotClassifier struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
}

func NewHugotClassifier(modelPath string) (*HugotClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("sentiment model not found at %s: %w", modelPath, err)
	}

	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hugot session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "transcriptSentimentPipeline",
		Options: []hugot.TextClassificationOption{
			pipelines.WithSoftmax(),
			pipelines.WithMultiLabel(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("failed to initialize classification pipeline: %w", err)
	}

	slog.Info("[HugotClassifier] Pipeline ready", slog.String("model", modelPath))
	return &HugotClassifier{session: session, pipeline: pipeline}, nil
}

func (h *HugotClassifier) Classify(ctx context.Context, text string) (Probabilities, error) {
	if err := ctx.Err(); err != nil {
		return Probabilities{}, err
	}

	output, err := h.pipeline.RunPipeline([]string{text})
	if err != nil {
		return Probabilities{}, fmt.Errorf("%w: %v", ErrScoring, err)
	}
	if len(output.ClassificationOutputs) == 0 {
		return Probabilities{}, fmt.Errorf("%w: empty classifier output", ErrScoring)
	}

	scores := make(map[string]float64, 3)
	for _, c := range output.ClassificationOutputs[0] {
		scores[c.Label] = float64(c.Score)
	}
	return ProbabilitiesFromLabels(scores)
}

func (h *HugotClassifier) Close() error {
	return h.session.Destroy()
}
