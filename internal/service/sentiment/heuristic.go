package sentiment

import (
	"context"

	analysis "github.com/zhouzirui/mindful-chat/backend/internal/analysis/sentiment"
)

// HeuristicClassifier classifies locally with keyword scoring. Useful without a model service.
type HeuristicClassifier struct{}

func (HeuristicClassifier) Classify(_ context.Context, text string) (Raw, error) {
	decision := analysis.Analyze(text)
	confidence := decision.Confidence
	return Raw{
		Label:      string(decision.Label),
		Confidence: &confidence,
	}, nil
}
