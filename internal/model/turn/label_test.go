package turn

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want Label
		ok   bool
	}{
		{"anxiety", Anxiety, true},
		{"  Depression ", Depression, true},
		{"SUICIDAL", Suicidal, true},
		{"happy", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseLabel(tc.raw)
		if tc.ok && err != nil {
			t.Fatalf("ParseLabel(%q) unexpected error: %v", tc.raw, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidLabel) {
			t.Fatalf("ParseLabel(%q) expected ErrInvalidLabel, got %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseLabel(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestParseReviewFlagClearsOnEmpty(t *testing.T) {
	flag, err := ParseReviewFlag("")
	if err != nil || flag != ReviewNone {
		t.Fatalf("expected none, got %q (%v)", flag, err)
	}
	flag, err = ParseReviewFlag("Stress")
	if err != nil || flag != ReviewFlag(Stress) {
		t.Fatalf("expected stress, got %q (%v)", flag, err)
	}
	if _, err := ParseReviewFlag("angry"); !errors.Is(err, ErrInvalidReviewFlag) {
		t.Fatalf("expected ErrInvalidReviewFlag, got %v", err)
	}
}

func TestLabelJSONRejectsUnknownValues(t *testing.T) {
	var l Label
	if err := json.Unmarshal([]byte(`"stress"`), &l); err != nil || l != Stress {
		t.Fatalf("expected stress, got %q (%v)", l, err)
	}
	if err := json.Unmarshal([]byte(`"joy"`), &l); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestLabelValueRejectsNonCanonical(t *testing.T) {
	if _, err := Label("Anxiety").Value(); err == nil {
		t.Fatal("expected Value to reject non-canonical label")
	}
	if v, err := Neutral.Value(); err != nil || v != "neutral" {
		t.Fatalf("unexpected value %v (%v)", v, err)
	}
}

func TestTurnValidate(t *testing.T) {
	valid := Turn{
		Owner:      "u1",
		Message:    "hello",
		Reply:      "hi",
		Label:      Neutral,
		ReviewFlag: ReviewNone,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid turn, got %v", err)
	}

	mutations := map[string]func(*Turn){
		"blank message":  func(t *Turn) { t.Message = "   " },
		"missing owner":  func(t *Turn) { t.Owner = "" },
		"empty reply":    func(t *Turn) { t.Reply = "" },
		"bad label":      func(t *Turn) { t.Label = "joy" },
		"bad flag":       func(t *Turn) { t.ReviewFlag = "" },
		"confidence > 1": func(t *Turn) { t.Confidence = 1.2 },
		"confidence < 0": func(t *Turn) { t.Confidence = -0.1 },
	}
	for name, mutate := range mutations {
		candidate := valid
		mutate(&candidate)
		if err := candidate.Validate(); !errors.Is(err, ErrInvalidTurn) {
			t.Fatalf("%s: expected ErrInvalidTurn, got %v", name, err)
		}
	}
}
