package turn

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidLabel      = errors.New("invalid label")
	ErrInvalidReviewFlag = errors.New("invalid review flag")
)

// Label is the automated emotional classification of a turn.
type Label string

const (
	Anxiety    Label = "anxiety"
	Depression Label = "depression"
	Neutral    Label = "neutral"
	Stress     Label = "stress"
	Suicidal   Label = "suicidal"
)

// Labels lists the closed label vocabulary in a stable order.
func Labels() []Label {
	return []Label{Anxiety, Depression, Neutral, Stress, Suicidal}
}

// ParseLabel normalizes raw into a Label. Matching is case-insensitive.
func ParseLabel(raw string) (Label, error) {
	switch l := Label(strings.ToLower(strings.TrimSpace(raw))); l {
	case Anxiety, Depression, Neutral, Stress, Suicidal:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, raw)
	}
}

// Valid reports whether l belongs to the label vocabulary.
func (l Label) Valid() bool {
	parsed, err := ParseLabel(string(l))
	return err == nil && parsed == l
}

func (l Label) String() string { return string(l) }

func (l *Label) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseLabel(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Value rejects labels outside the vocabulary before they reach the database.
func (l Label) Value() (driver.Value, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, string(l))
	}
	return string(l), nil
}

func (l *Label) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseLabel(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ReviewFlag is the human-assigned annotation on a turn. It is independent of Label.
type ReviewFlag string

const ReviewNone ReviewFlag = "none"

// ParseReviewFlag normalizes raw into a ReviewFlag. An empty value clears the flag.
func ParseReviewFlag(raw string) (ReviewFlag, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" || normalized == string(ReviewNone) {
		return ReviewNone, nil
	}
	l, err := ParseLabel(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidReviewFlag, raw)
	}
	return ReviewFlag(l), nil
}

func (f ReviewFlag) Valid() bool {
	parsed, err := ParseReviewFlag(string(f))
	return err == nil && parsed == f
}

func (f ReviewFlag) String() string { return string(f) }

func (f *ReviewFlag) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = ReviewNone
		return nil
	}
	parsed, err := ParseReviewFlag(*raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f ReviewFlag) Value() (driver.Value, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReviewFlag, string(f))
	}
	return string(f), nil
}

func (f *ReviewFlag) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseReviewFlag(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported column type %T", src)
	}
}
