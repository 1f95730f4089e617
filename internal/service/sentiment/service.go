package sentiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
	"github.com/zhouzirui/mindful-chat/backend/internal/observability"
)

// riskThreshold mirrors the classification service: suicidal above this confidence needs help now.
const riskThreshold = 0.7

var (
	ErrNoClassifier     = errors.New("sentiment classifier not configured")
	ErrMalformedPayload = errors.New("malformed classification payload")
)

// Raw is an upstream classification before coercion to the label vocabulary.
type Raw struct {
	Label      string
	Confidence *float64
	RiskFlag   *bool
}

// Classifier is an upstream classification capability.
type Classifier interface {
	Classify(ctx context.Context, text string) (Raw, error)
}

// Result is the normalized classification. Err is set when Outcome is degraded.
type Result struct {
	Label      turn.Label
	Confidence float64
	RiskFlag   bool
	Outcome    turn.Outcome
	Err        error
}

// Fallback is the result substituted whenever the upstream cannot be used.
func Fallback(cause error) Result {
	return Result{
		Label:      turn.Neutral,
		Confidence: 0,
		RiskFlag:   false,
		Outcome:    turn.OutcomeDegraded,
		Err:        cause,
	}
}

// Adapter turns a Classifier into a total function: every call yields a Result.
type Adapter struct {
	classifier Classifier
	timeout    time.Duration
	log        *observability.Logger
}

// NewAdapter wraps classifier. A non-positive timeout defaults to five seconds.
func NewAdapter(classifier Classifier, timeout time.Duration, log *observability.Logger) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = observability.NewNop()
	}
	return &Adapter{
		classifier: classifier,
		timeout:    timeout,
		log:        log.Named("sentiment"),
	}
}

// Classify makes a single attempt against the upstream. It never returns an error;
// failures resolve to Fallback.
func (a *Adapter) Classify(ctx context.Context, text string) (result Result) {
	if a == nil || a.classifier == nil {
		return Fallback(ErrNoClassifier)
	}

	defer func() {
		if r := recover(); r != nil {
			result = a.degrade(fmt.Errorf("classifier panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.classifier.Classify(ctx, text)
	if err != nil {
		return a.degrade(err)
	}

	normalized, err := Normalize(raw)
	if err != nil {
		return a.degrade(err)
	}

	a.log.Debug("classified message",
		"label", normalized.Label,
		"confidence", normalized.Confidence,
		"risk", normalized.RiskFlag,
	)
	return normalized
}

func (a *Adapter) degrade(err error) Result {
	a.log.Warn("sentiment upstream failed, using neutral fallback", "error", err)
	return Fallback(err)
}

// Normalize coerces a raw upstream payload into a successful Result.
func Normalize(raw Raw) (Result, error) {
	label, err := turn.ParseLabel(raw.Label)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if raw.Confidence == nil {
		return Result{}, fmt.Errorf("%w: missing confidence", ErrMalformedPayload)
	}
	confidence := *raw.Confidence
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Result{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedPayload, confidence)
	}

	risk := label == turn.Suicidal && confidence > riskThreshold
	if raw.RiskFlag != nil {
		risk = *raw.RiskFlag
	}

	return Result{
		Label:      label,
		Confidence: confidence,
		RiskFlag:   risk,
		Outcome:    turn.OutcomeSuccess,
	}, nil
}
