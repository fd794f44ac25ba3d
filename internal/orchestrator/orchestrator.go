// Package orchestrator runs the per-user turn pipeline: profile update,
// routing, optional specialist consultation, generation, self-critique and
// periodic persistence.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalambet/mavkus/internal/composer"
	"github.com/kalambet/mavkus/internal/critique"
	"github.com/kalambet/mavkus/internal/engine"
	"github.com/kalambet/mavkus/internal/memory"
	"github.com/kalambet/mavkus/internal/profile"
	"github.com/kalambet/mavkus/internal/routing"
	"github.com/kalambet/mavkus/internal/specialist"
)

const (
	DefaultGenerationTimeout = 90 * time.Second
	DefaultSaveEvery         = 5
)

// Memory loads and deletes stored user states.
type Memory interface {
	Load(ctx context.Context, userID string) (memory.State, bool)
	Clear(ctx context.Context, userID string) error
}

// Persister writes a state snapshot. Implementations handle their own errors.
type Persister interface {
	Persist(ctx context.Context, st memory.State)
}

// discarder is implemented by persisters that queue snapshots. Discard drops
// the queued snapshot of a user and waits for one already being written.
type discarder interface {
	Discard(userID string)
}

// Config tunes one orchestrator.
type Config struct {
	UserID            string
	GenerationTimeout time.Duration
	CritiqueTimeout   time.Duration
	SaveEvery         int
	HistoryWindow     int
}

// Deps are the collaborators of an orchestrator. Generalist is required.
// Critic defaults to Generalist, Specialist to an unavailable adapter and
// Persister to Memory when it implements Persister.
type Deps struct {
	Generalist engine.Engine
	Critic     engine.Engine
	Specialist *specialist.Adapter
	Memory     Memory
	Persister  Persister
	Now        func() time.Time
}

// Metadata describes how a turn was handled.
type Metadata struct {
	RoutedToSpecialist bool               `json:"routed_to_gemini"`
	SpecialistUsed     bool               `json:"gemini_used"`
	SpecialistResponse *specialist.Result `json:"gemini_response"`
	Critique           *critique.Critique `json:"critique"`
	GenerationFailed   bool               `json:"generation_failed,omitempty"`
	PromptTokens       int                `json:"prompt_tokens"`
	CompletionTokens   int                `json:"completion_tokens"`
}

// Stats is the diagnostic view of a user's state.
type Stats struct {
	UserID            string              `json:"user_id"`
	Profile           profile.Profile     `json:"user_profile"`
	Specialist        specialist.Stats    `json:"gemini"`
	Routing           memory.RoutingStats `json:"routing"`
	ConversationCount int                 `json:"conversation_count"`
}

// Orchestrator owns one user's state. Turns are serialized.
type Orchestrator struct {
	userID            string
	generalist        engine.Engine
	critic            *critique.Critic
	specialist        *specialist.Adapter
	composer          *composer.Composer
	memory            Memory
	persister         Persister
	generationTimeout time.Duration
	saveEvery         int
	now               func() time.Time
	logger            *slog.Logger

	mu    sync.Mutex
	state memory.State
	phase atomic.Int32
}

// New builds an orchestrator for cfg.UserID and loads its stored state.
// A missing generalist yields a *ConfigurationError wrapping
// ErrMissingCredential.
func New(ctx context.Context, cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Generalist == nil {
		return nil, &ConfigurationError{UserID: memory.ShortID(cfg.UserID), Err: ErrMissingCredential}
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = DefaultSaveEvery
	}
	criticEngine := deps.Critic
	if criticEngine == nil {
		criticEngine = deps.Generalist
	}
	adapter := deps.Specialist
	if adapter == nil {
		adapter = specialist.New(nil)
	}
	persister := deps.Persister
	if persister == nil {
		if p, ok := deps.Memory.(Persister); ok {
			persister = p
		}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	o := &Orchestrator{
		userID:            cfg.UserID,
		generalist:        deps.Generalist,
		critic:            critique.NewCritic(criticEngine, cfg.CritiqueTimeout),
		specialist:        adapter,
		composer:          composer.New(cfg.HistoryWindow),
		memory:            deps.Memory,
		persister:         persister,
		generationTimeout: cfg.GenerationTimeout,
		saveEvery:         cfg.SaveEvery,
		now:               now,
		logger:            slog.Default().With("user", memory.ShortID(cfg.UserID)),
	}

	o.state = memory.NewState(cfg.UserID)
	if deps.Memory != nil {
		if st, ok := deps.Memory.Load(ctx, cfg.UserID); ok {
			o.state = st
			o.logger.Info("memory loaded",
				"conversations", st.Profile.ConversationCount,
				"messages", len(st.ChatHistory),
			)
		}
	}
	o.state.SpecialistStats = adapter.Stats()

	o.logger.Info("orchestrator ready",
		"model", deps.Generalist.Model(),
		"specialist", adapter.Name(),
		"specialist_available", adapter.Available(),
	)
	return o, nil
}

// UserID returns the id of the user this orchestrator serves.
func (o *Orchestrator) UserID() string { return o.userID }

// State returns the pipeline phase currently executing.
func (o *Orchestrator) State() Phase { return Phase(o.phase.Load()) }

func (o *Orchestrator) enter(p Phase) {
	prev := Phase(o.phase.Swap(int32(p)))
	o.logger.Debug("orchestrator transition", "from", prev, "to", p)
}

// Chat processes one user message and always returns a response. Capability
// failures degrade to fallbacks: generation errors become a visible error
// string and critique errors become neutral scores.
func (o *Orchestrator) Chat(ctx context.Context, message string, enableCritique bool) (string, Metadata) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.enter(PhaseIdle)

	var meta Metadata
	st := &o.state
	now := o.now()

	// 1. Update the profile and counters.
	o.enter(PhaseAnalyzing)
	st.Profile.Observe(message)
	st.Profile.ConversationCount++
	st.RoutingStats.TotalQuestions++
	o.appendHistory(memory.RoleUser, message, now)

	// 2. Decide routing.
	o.enter(PhaseRouting)
	decision := routing.Decide(message)
	meta.RoutedToSpecialist = decision.Route

	// 3. Consult the specialist when routed and available.
	var specialistAnswer string
	if decision.Route && o.specialist.Available() {
		o.enter(PhaseConsulting)
		st.RoutingStats.RoutedToSpecialist++
		o.logger.Info("routing to specialist", "matched", decision.Matched, "strong", decision.Strong)

		res := o.specialist.Consult(ctx, message, "Stile: "+string(st.Profile.Style))
		meta.SpecialistResponse = &res
		meta.SpecialistUsed = res.Success
		if res.Success {
			st.LearnedPatterns.RecordConsultation(now, message, true)
			specialistAnswer = res.Answer
		}
		st.SpecialistStats = o.specialist.Stats()
		st.RoutingStats.SpecialistSuccessRate = st.SpecialistStats.SuccessRate
	} else {
		st.RoutingStats.HandledByGeneralist++
	}

	// 4. Generate.
	o.enter(PhaseGenerating)
	msgs := o.composer.Compose(composer.Input{
		Profile:          st.Profile,
		SpecialistName:   o.specialist.Name(),
		Specialty:        o.specialist.Specialty(),
		Routing:          o.routingSummary(),
		SpecialistAnswer: specialistAnswer,
		History:          toEngineMessages(st.ChatHistory),
	})
	meta.PromptTokens = composer.CountMessages(msgs)

	response, err := o.generate(ctx, msgs)
	if err != nil {
		o.logger.Warn("generation failed", "model", o.generalist.Model(), "error", err)
		response = fmt.Sprintf("%s Errore generazione risposta: %v", specialist.ErrorMarker, err)
		meta.GenerationFailed = true
	}
	meta.CompletionTokens = composer.CountTokens(response)
	o.appendHistory(memory.RoleAssistant, response, o.now())

	// 5. Critique and learn.
	if enableCritique {
		o.enter(PhaseCritiquing)
		c := o.critic.Critique(ctx, message, response)
		st.Profile.Learn(c.OverallScore, c.Scores)
		st.LearnedPatterns.RecordCritique(message, c.OverallScore, c.ImprovementSuggestion)
		meta.Critique = &c
	}

	// 6. Persist every saveEvery turns.
	if st.Profile.ConversationCount%o.saveEvery == 0 {
		o.enter(PhasePersisting)
		o.persist(context.WithoutCancel(ctx))
	}

	return response, meta
}

func (o *Orchestrator) generate(ctx context.Context, msgs []engine.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.generationTimeout)
	defer cancel()
	return o.generalist.Chat(ctx, msgs)
}

func (o *Orchestrator) appendHistory(role, content string, at time.Time) {
	h := append(o.state.ChatHistory, memory.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: at.Format(time.RFC3339),
	})
	if len(h) > memory.MaxPersistedMessages {
		h = append([]memory.ChatMessage(nil), h[len(h)-memory.MaxPersistedMessages:]...)
	}
	o.state.ChatHistory = h
}

func (o *Orchestrator) routingSummary() composer.RoutingSummary {
	rs := o.state.RoutingStats
	return composer.RoutingSummary{
		TotalQuestions:     rs.TotalQuestions,
		RoutedToSpecialist: rs.RoutedToSpecialist,
		SuccessRate:        rs.SpecialistSuccessRate,
	}
}

func (o *Orchestrator) persist(ctx context.Context) {
	if o.persister == nil {
		return
	}
	o.persister.Persist(ctx, o.state.Clone())
}

func toEngineMessages(history []memory.ChatMessage) []engine.Message {
	out := make([]engine.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case memory.RoleUser:
			out = append(out, engine.UserMessage(m.Content))
		case memory.RoleAssistant:
			out = append(out, engine.AssistantMessage(m.Content))
		}
	}
	return out
}

// Stats returns a copy of the profile, routing and specialist counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{
		UserID:            o.userID,
		Profile:           o.state.Profile.Clone(),
		Specialist:        o.specialist.Stats(),
		Routing:           o.state.RoutingStats,
		ConversationCount: o.state.Profile.ConversationCount,
	}
}

// Snapshot returns a deep copy of the aggregate state.
func (o *Orchestrator) Snapshot() memory.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Save writes the current state synchronously regardless of the turn count,
// superseding any queued or running background write. It goes through Memory
// or Persister, whichever implements memory.Saver, and falls back to Persist.
// No turn can run while it saves.
func (o *Orchestrator) Save(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.state.Clone()
	if d, ok := o.persister.(discarder); ok {
		d.Discard(o.userID)
	}
	if s, ok := o.memory.(memory.Saver); ok {
		return s.Save(ctx, st)
	}
	if s, ok := o.persister.(memory.Saver); ok {
		return s.Save(ctx, st)
	}
	if o.persister != nil {
		o.persister.Persist(ctx, st)
	}
	return nil
}

// Clear resets the user's profile, patterns, counters and history and deletes
// the stored record once any background write of the old state has finished.
func (o *Orchestrator) Clear(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = memory.NewState(o.userID)
	o.state.SpecialistStats = o.specialist.Stats()

	if d, ok := o.persister.(discarder); ok {
		d.Discard(o.userID)
	}
	if o.memory == nil {
		return nil
	}
	if err := o.memory.Clear(ctx, o.userID); err != nil {
		o.logger.Error("clearing memory failed", "error", err)
		return fmt.Errorf("clearing memory: %w", err)
	}
	o.logger.Info("memory cleared")
	return nil
}
