package sentiment

import (
	"strings"

	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
)

// Decision is the outcome of keyword scoring.
type Decision struct {
	Label      turn.Label
	Confidence float64
	Score      int
}

var keywordBuckets = map[turn.Label][]string{
	turn.Anxiety: {
		"anxious", "anxiety", "panic", "nervous", "worried", "worry", "on edge", "restless",
		"can't breathe", "heart racing", "overthinking", "scared", "afraid", "fear", "uneasy",
	},
	turn.Depression: {
		"depressed", "depression", "hopeless", "empty", "worthless", "numb", "no energy",
		"can't get out of bed", "sad all the time", "lonely", "alone", "nothing matters", "tired of everything",
	},
	turn.Stress: {
		"stressed", "stress", "overwhelmed", "pressure", "deadline", "burnout", "burned out",
		"too much", "exhausted", "workload", "exams", "can't cope", "swamped",
	},
	turn.Suicidal: {
		"suicide", "suicidal", "kill myself", "end my life", "end it all", "want to die",
		"better off dead", "no reason to live", "self harm", "self-harm", "hurt myself",
	},
}

// priority breaks ties in favour of the label that needs the most care.
var priority = []turn.Label{turn.Suicidal, turn.Depression, turn.Anxiety, turn.Stress}

// weights make a single crisis phrase outweigh a single stress phrase.
var weights = map[turn.Label]int{
	turn.Anxiety:    3,
	turn.Depression: 3,
	turn.Stress:     3,
	turn.Suicidal:   6,
}

// Analyze scores text against the keyword buckets. Text with no hits is neutral.
func Analyze(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Label: turn.Neutral}
	}

	scores := make(map[turn.Label]int)
	total := 0
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += weights[label]
				total += weights[label]
			}
		}
	}

	best := turn.Neutral
	bestScore := 0
	for _, label := range priority {
		if s := scores[label]; s > bestScore {
			bestScore = s
			best = label
		}
	}

	if bestScore == 0 {
		return Decision{Label: turn.Neutral, Confidence: 0.5}
	}

	// share of the total hits, lifted by the absolute amount of evidence
	confidence := 0.5*float64(bestScore)/float64(total) + 0.1*float64(bestScore/3)
	if confidence > 0.95 {
		confidence = 0.95
	}
	if confidence < 0.3 {
		confidence = 0.3
	}

	return Decision{Label: best, Confidence: confidence, Score: bestScore}
}
