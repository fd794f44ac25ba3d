// Package specialist wraps the science/math domain expert consulted for
// routed turns. The Adapter owns the consultation counters and converts
// every failure of the underlying capability into an unsuccessful Result.
package specialist

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Defaults for the science specialist.
const (
	DefaultName      = "Gemini Pro"
	DefaultSpecialty = "Scienze (Fisica, Chimica, Biologia), Matematica, Ricerca"
	DefaultTimeout   = 60 * time.Second

	// ErrorMarker prefixes every answer that is not a real answer.
	ErrorMarker = "❌"

	maxErrorRunes = 100
)

// Answerer is the external capability that produces an answer for a prompt.
type Answerer interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

// Result is the uniform outcome of a consultation.
type Result struct {
	Answer         string `json:"answer"`
	Success        bool   `json:"success"`
	SpecialistName string `json:"ai_name"`
}

// Stats is a point-in-time view of the adapter counters.
type Stats struct {
	Name          string  `json:"name"`
	Specialty     string  `json:"specialty"`
	Consultations int64   `json:"consultations"`
	Successes     int64   `json:"successes"`
	SuccessRate   float64 `json:"success_rate"`
	Available     bool    `json:"available"`
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithName overrides the display name.
func WithName(name string) Option { return func(a *Adapter) { a.name = name } }

// WithSpecialty overrides the specialty description.
func WithSpecialty(s string) Option { return func(a *Adapter) { a.specialty = s } }

// WithTimeout bounds each consultation. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// Adapter consults a single specialist. It is safe for concurrent use.
type Adapter struct {
	answerer  Answerer
	name      string
	specialty string
	timeout   time.Duration

	consultations atomic.Int64
	successes     atomic.Int64
}

// New creates an Adapter. A nil answerer yields an unavailable adapter whose
// Consult always short-circuits.
func New(answerer Answerer, opts ...Option) *Adapter {
	a := &Adapter{
		answerer:  answerer,
		name:      DefaultName,
		specialty: DefaultSpecialty,
		timeout:   DefaultTimeout,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Available reports whether a capability is configured.
func (a *Adapter) Available() bool { return a.answerer != nil }

// Name returns the display name.
func (a *Adapter) Name() string { return a.name }

// Specialty returns the specialty description.
func (a *Adapter) Specialty() string { return a.specialty }

// Consult asks the specialist. Every call counts as a consultation; only a
// successful answer counts as a success. It never returns an error.
func (a *Adapter) Consult(ctx context.Context, question, userContext string) Result {
	a.consultations.Add(1)

	if a.answerer == nil {
		return Result{
			Answer:         fmt.Sprintf("%s %s non disponibile", ErrorMarker, a.name),
			SpecialistName: a.name,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	answer, err := a.answerer.Answer(ctx, BuildPrompt(question, userContext, a.specialty))
	if err != nil {
		slog.Warn("specialist consultation failed", "specialist", a.name, "error", err)
		return Result{
			Answer:         fmt.Sprintf("%s Errore %s: %s", ErrorMarker, a.name, truncateRunes(err.Error(), maxErrorRunes)),
			SpecialistName: a.name,
		}
	}

	a.successes.Add(1)
	return Result{Answer: answer, Success: true, SpecialistName: a.name}
}

// Stats returns the current counters.
func (a *Adapter) Stats() Stats {
	c := a.consultations.Load()
	s := a.successes.Load()
	var rate float64
	if c > 0 {
		rate = float64(s) / float64(c) * 100
	}
	return Stats{
		Name:          a.name,
		Specialty:     a.specialty,
		Consultations: c,
		Successes:     s,
		SuccessRate:   rate,
		Available:     a.Available(),
	}
}

// BuildPrompt renders the prompt sent to the specialist.
func BuildPrompt(question, userContext, specialty string) string {
	return fmt.Sprintf("CONTESTO UTENTE: %s\n\nDOMANDA: %s\n\nSei un esperto in %s. Rispondi in modo dettagliato, scientifico ma comprensibile.",
		userContext, question, specialty)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
