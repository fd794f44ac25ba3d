// Package memory persists the aggregate per-user state as one JSON document
// behind a key-value BlobStore.
package memory

import (
	"time"
	"unicode/utf8"

	"github.com/kalambet/mavkus/internal/profile"
	"github.com/kalambet/mavkus/internal/specialist"
)

// Capacities of the persisted lists.
const (
	MaxPersistedMessages = 50
	MaxConsultations     = 50
	MaxPatternEntries    = 50
	QuestionExcerptRunes = 100
)

// Critique thresholds for the learned response lists.
const (
	SuccessfulScore = 8
	FailedScore     = 5
)

// Chat roles as persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry of the conversation history.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Consultation records one successful specialist consultation.
type Consultation struct {
	Timestamp string `json:"timestamp"`
	Question  string `json:"question"`
	Success   bool   `json:"success"`
}

// LearnedPatterns accumulates outcomes across turns. Every list is capped.
type LearnedPatterns struct {
	Consultations         []Consultation `json:"gemini_consultations"`
	SuccessfulResponses   []string       `json:"successful_responses"`
	FailedResponses       []string       `json:"failed_responses"`
	ImprovementStrategies []string       `json:"improvement_strategies"`
}

// RoutingStats counts routing decisions. SpecialistSuccessRate mirrors the
// specialist adapter and is overwritten, never accumulated.
type RoutingStats struct {
	TotalQuestions        int     `json:"total_questions"`
	RoutedToSpecialist    int     `json:"routed_to_specialist"`
	HandledByGeneralist   int     `json:"handled_by_generalist"`
	SpecialistSuccessRate float64 `json:"specialist_success_rate"`
}

// State is the persisted unit for one user.
type State struct {
	UserID          string           `json:"user_id"`
	Profile         profile.Profile  `json:"user_profile"`
	LearnedPatterns LearnedPatterns  `json:"learned_patterns"`
	RoutingStats    RoutingStats     `json:"routing_stats"`
	SpecialistStats specialist.Stats `json:"specialist_stats"`
	ChatHistory     []ChatMessage    `json:"chat_history"`
	LastSaved       string           `json:"last_saved,omitempty"`
}

// NewState returns the initial state for userID.
func NewState(userID string) State {
	return State{
		UserID:          userID,
		Profile:         profile.New(),
		LearnedPatterns: newLearnedPatterns(),
		ChatHistory:     []ChatMessage{},
	}
}

func newLearnedPatterns() LearnedPatterns {
	return LearnedPatterns{
		Consultations:         []Consultation{},
		SuccessfulResponses:   []string{},
		FailedResponses:       []string{},
		ImprovementStrategies: []string{},
	}
}

// RecordConsultation appends a consultation outcome, keeping the most recent
// MaxConsultations entries.
func (lp *LearnedPatterns) RecordConsultation(at time.Time, question string, success bool) {
	lp.Consultations = keepLast(append(lp.Consultations, Consultation{
		Timestamp: at.Format(time.RFC3339),
		Question:  Excerpt(question),
		Success:   success,
	}), MaxConsultations)
}

// RecordCritique files the question under successful or failed responses by
// overall score and keeps any improvement suggestion.
func (lp *LearnedPatterns) RecordCritique(question string, overall float64, suggestion string) {
	switch {
	case overall >= SuccessfulScore:
		lp.SuccessfulResponses = keepLast(append(lp.SuccessfulResponses, Excerpt(question)), MaxPatternEntries)
	case overall <= FailedScore:
		lp.FailedResponses = keepLast(append(lp.FailedResponses, Excerpt(question)), MaxPatternEntries)
	}
	if suggestion != "" {
		lp.ImprovementStrategies = keepLast(append(lp.ImprovementStrategies, suggestion), MaxPatternEntries)
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Profile = s.Profile.Clone()
	out.LearnedPatterns = LearnedPatterns{
		Consultations:         append([]Consultation{}, s.LearnedPatterns.Consultations...),
		SuccessfulResponses:   append([]string{}, s.LearnedPatterns.SuccessfulResponses...),
		FailedResponses:       append([]string{}, s.LearnedPatterns.FailedResponses...),
		ImprovementStrategies: append([]string{}, s.LearnedPatterns.ImprovementStrategies...),
	}
	out.ChatHistory = append([]ChatMessage{}, s.ChatHistory...)
	return out
}

// normalize repairs a decoded state so every invariant holds.
func (s *State) normalize(userID string) {
	if s.UserID == "" {
		s.UserID = userID
	}
	s.Profile.Normalize()

	lp := &s.LearnedPatterns
	if lp.Consultations == nil {
		lp.Consultations = []Consultation{}
	}
	if lp.SuccessfulResponses == nil {
		lp.SuccessfulResponses = []string{}
	}
	if lp.FailedResponses == nil {
		lp.FailedResponses = []string{}
	}
	if lp.ImprovementStrategies == nil {
		lp.ImprovementStrategies = []string{}
	}
	lp.Consultations = keepLast(lp.Consultations, MaxConsultations)
	lp.SuccessfulResponses = keepLast(lp.SuccessfulResponses, MaxPatternEntries)
	lp.FailedResponses = keepLast(lp.FailedResponses, MaxPatternEntries)
	lp.ImprovementStrategies = keepLast(lp.ImprovementStrategies, MaxPatternEntries)

	if s.ChatHistory == nil {
		s.ChatHistory = []ChatMessage{}
	}
	s.ChatHistory = keepLast(s.ChatHistory, MaxPersistedMessages)
}

// Excerpt truncates s to QuestionExcerptRunes runes.
func Excerpt(s string) string {
	if utf8.RuneCountInString(s) <= QuestionExcerptRunes {
		return s
	}
	return string([]rune(s)[:QuestionExcerptRunes])
}

func keepLast[T any](list []T, n int) []T {
	if len(list) <= n {
		return list
	}
	out := make([]T, n)
	copy(out, list[len(list)-n:])
	return out
}
