// Package critique scores a generated answer against a fixed rubric using a
// secondary model. Any failure degrades to a neutral Fallback so a turn is
// never aborted by its critique.
package critique

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/mavkus/internal/engine"
)

// DefaultTimeout bounds a single critique call.
const DefaultTimeout = 30 * time.Second

// Fallback values.
const (
	FallbackScore      = 7
	FallbackSuggestion = "Continua a migliorare"
	FallbackCategory   = "generale"
)

// Critique is the structured assessment of one exchange.
type Critique struct {
	Scores                Scores   `json:"scores"`
	OverallScore          float64  `json:"overall_score"`
	Strengths             []string `json:"strengths"`
	Weaknesses            []string `json:"weaknesses"`
	ImprovementSuggestion string   `json:"improvement_suggestion"`
	Category              string   `json:"category"`

	// Fallback is set when the critique was synthesized after a failure.
	Fallback bool `json:"fallback,omitempty"`
}

// Fallback returns the neutral critique used when scoring fails.
func Fallback() Critique {
	scores := make(Scores, len(Criteria))
	for i, c := range Criteria {
		scores[i].Area = c.Key
		scores[i].Score = FallbackScore
	}
	return Critique{
		Scores:                scores,
		OverallScore:          FallbackScore,
		Strengths:             []string{"Risposta generica"},
		Weaknesses:            []string{"Valutazione non disponibile"},
		ImprovementSuggestion: FallbackSuggestion,
		Category:              FallbackCategory,
		Fallback:              true,
	}
}

// Critic asks a model to score answers.
type Critic struct {
	engine  engine.Engine
	timeout time.Duration
}

// NewCritic creates a Critic. A non-positive timeout selects DefaultTimeout.
func NewCritic(e engine.Engine, timeout time.Duration) *Critic {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Critic{engine: e, timeout: timeout}
}

// Critique scores aiResponse as an answer to userMessage. On timeout,
// capability error or malformed payload it returns Fallback().
func (c *Critic) Critique(ctx context.Context, userMessage, aiResponse string) Critique {
	if c == nil || c.engine == nil {
		return Fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.engine.Chat(ctx, BuildPrompt(userMessage, aiResponse))
	if err != nil {
		slog.Warn("critique chat failed", "error", err)
		return Fallback()
	}

	result, err := Parse(raw)
	if err != nil {
		slog.Warn("failed to parse critique", "error", err, "response", raw)
		return Fallback()
	}
	return result
}
