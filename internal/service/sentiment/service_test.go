package sentiment

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
)

type stubClassifier struct {
	raw   Raw
	err   error
	panic bool
	calls int
}

func (s *stubClassifier) Classify(ctx context.Context, _ string) (Raw, error) {
	s.calls++
	if s.panic {
		panic("boom")
	}
	return s.raw, s.err
}

type blockingClassifier struct{}

func (blockingClassifier) Classify(ctx context.Context, _ string) (Raw, error) {
	<-ctx.Done()
	return Raw{}, ctx.Err()
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func assertFallback(t *testing.T, res Result) {
	t.Helper()
	if res.Label != turn.Neutral || res.Confidence != 0 || res.RiskFlag {
		t.Fatalf("expected neutral/0/false fallback, got %+v", res)
	}
	if res.Outcome != turn.OutcomeDegraded {
		t.Fatalf("expected degraded outcome, got %s", res.Outcome)
	}
	if res.Err == nil {
		t.Fatal("expected fallback cause to be recorded")
	}
}

func TestAdapterPassesThroughValidResult(t *testing.T) {
	stub := &stubClassifier{raw: Raw{Label: "Anxiety", Confidence: floatPtr(0.92), RiskFlag: boolPtr(false)}}
	res := NewAdapter(stub, time.Second, nil).Classify(context.Background(), "I feel so anxious about everything")

	if res.Label != turn.Anxiety || res.Confidence != 0.92 || res.RiskFlag {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Outcome != turn.OutcomeSuccess || res.Err != nil {
		t.Fatalf("expected success, got %s (%v)", res.Outcome, res.Err)
	}
}

func TestAdapterFallsBackOnUpstreamError(t *testing.T) {
	stub := &stubClassifier{err: errors.New("connection refused")}
	res := NewAdapter(stub, time.Second, nil).Classify(context.Background(), "hello")
	assertFallback(t, res)
	if stub.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", stub.calls)
	}
}

func TestAdapterFallsBackOnTimeout(t *testing.T) {
	start := time.Now()
	res := NewAdapter(blockingClassifier{}, 20*time.Millisecond, nil).Classify(context.Background(), "hello")
	assertFallback(t, res)
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", res.Err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("adapter did not respect its timeout")
	}
}

func TestAdapterFallsBackOnPanic(t *testing.T) {
	res := NewAdapter(&stubClassifier{panic: true}, time.Second, nil).Classify(context.Background(), "hello")
	assertFallback(t, res)
}

func TestAdapterWithoutClassifier(t *testing.T) {
	var adapter *Adapter
	res := adapter.Classify(context.Background(), "hello")
	assertFallback(t, res)
	if !errors.Is(res.Err, ErrNoClassifier) {
		t.Fatalf("expected ErrNoClassifier, got %v", res.Err)
	}
}

func TestAdapterFallsBackOnMalformedPayload(t *testing.T) {
	cases := map[string]Raw{
		"unknown label":      {Label: "joy", Confidence: floatPtr(0.9)},
		"missing label":      {Confidence: floatPtr(0.9)},
		"missing confidence": {Label: "stress"},
		"confidence above 1": {Label: "stress", Confidence: floatPtr(1.5)},
		"negative":           {Label: "stress", Confidence: floatPtr(-0.2)},
		"nan":                {Label: "stress", Confidence: floatPtr(math.NaN())},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res := NewAdapter(&stubClassifier{raw: raw}, time.Second, nil).Classify(context.Background(), "x")
			assertFallback(t, res)
			if !errors.Is(res.Err, ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", res.Err)
			}
		})
	}
}

func TestNormalizeDerivesRiskWhenAbsent(t *testing.T) {
	res, err := Normalize(Raw{Label: "suicidal", Confidence: floatPtr(0.85)})
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}
	if !res.RiskFlag {
		t.Fatal("expected derived risk flag for high-confidence suicidal label")
	}

	res, err = Normalize(Raw{Label: "suicidal", Confidence: floatPtr(0.6)})
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}
	if res.RiskFlag {
		t.Fatal("expected no risk flag below threshold")
	}

	res, err = Normalize(Raw{Label: "stress", Confidence: floatPtr(0.3), RiskFlag: boolPtr(true)})
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}
	if !res.RiskFlag {
		t.Fatal("expected upstream risk flag to pass through")
	}
}

func TestHeuristicClassifier(t *testing.T) {
	res := NewAdapter(HeuristicClassifier{}, time.Second, nil).Classify(context.Background(), "I am so stressed about this deadline")
	if res.Outcome != turn.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%v)", res.Outcome, res.Err)
	}
	if res.Label != turn.Stress {
		t.Fatalf("expected stress, got %s", res.Label)
	}
}
