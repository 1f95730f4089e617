package turn

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
)

var ErrInvalidTurn = errors.New("invalid turn")

// Turn is one user message plus its generated reply and classification.
type Turn struct {
	ID         string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Owner      string     `json:"owner" gorm:"type:varchar(128);not null;index:idx_turns_owner_created,priority:1"`
	Message    string     `json:"message" gorm:"type:text;not null"`
	Reply      string     `json:"reply" gorm:"type:text;not null"`
	Label      Label      `json:"sentiment" gorm:"type:varchar(16);not null"`
	Confidence float64    `json:"confidence" gorm:"not null"`
	RiskFlag   bool       `json:"needs_immediate_help" gorm:"not null;default:false"`
	ReviewFlag ReviewFlag `json:"reviewFlag" gorm:"type:varchar(16);not null;default:'none'"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"not null;index:idx_turns_owner_created,priority:2"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (Turn) TableName() string { return "turns" }

// Validate checks every field constraint a persisted turn must satisfy.
func (t *Turn) Validate() error {
	switch {
	case strings.TrimSpace(t.Owner) == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidTurn)
	case strings.TrimSpace(t.Message) == "":
		return fmt.Errorf("%w: message is required", ErrInvalidTurn)
	case t.Reply == "":
		return fmt.Errorf("%w: reply is required", ErrInvalidTurn)
	case !t.Label.Valid():
		return fmt.Errorf("%w: %w %q", ErrInvalidTurn, ErrInvalidLabel, string(t.Label))
	case !t.ReviewFlag.Valid():
		return fmt.Errorf("%w: %w %q", ErrInvalidTurn, ErrInvalidReviewFlag, string(t.ReviewFlag))
	case math.IsNaN(t.Confidence) || t.Confidence < 0 || t.Confidence > 1:
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidTurn, t.Confidence)
	}
	return nil
}

// BeforeCreate runs Validate on every GORM insert.
func (t *Turn) BeforeCreate(_ *gorm.DB) error {
	return t.Validate()
}

// Outcome tags how an external capability call resolved.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFatal    Outcome = "fatal"
)
