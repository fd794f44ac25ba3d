package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kalambet/mavkus/internal/memory"
	"github.com/kalambet/mavkus/internal/metrics"
	"github.com/kalambet/mavkus/internal/orchestrator"
	"github.com/kalambet/mavkus/internal/storage"
)

// titleRunes is the length of a conversation title taken from the message.
const titleRunes = 50

// TurnResult is the outcome of ProcessTurn.
type TurnResult struct {
	Response       string
	ConversationID string
	Metadata       orchestrator.Metadata
	Timestamp      time.Time
}

// ProcessTurn validates message, runs one turn on the user's orchestrator and
// records the exchange. Only validation and configuration errors are
// returned; every other failure degrades inside the turn.
func (s *Service) ProcessTurn(ctx context.Context, userID, message string, enableCritique bool) (TurnResult, error) {
	if err := validateUserID(userID); err != nil {
		return TurnResult{}, err
	}
	if err := ValidateMessage(message); err != nil {
		return TurnResult{}, err
	}

	start := s.now()
	o, err := s.instance(ctx, userID)
	if err != nil {
		return TurnResult{}, err
	}

	slog.Info("processing turn", "user", memory.ShortID(userID), "critique", enableCritique)
	response, meta := o.Chat(ctx, message, enableCritique)

	s.observeTurn(meta, s.now().Sub(start))
	convID := s.recordConversation(userID, message, response, meta)
	if n := meta.PromptTokens + meta.CompletionTokens; n > 0 {
		if err := s.docs.IncrementTokenUsage(userID, n); err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("updating token usage failed", "user", memory.ShortID(userID), "error", err)
		}
	}

	return TurnResult{
		Response:       response,
		ConversationID: convID,
		Metadata:       meta,
		Timestamp:      s.now(),
	}, nil
}

func (s *Service) observeTurn(meta orchestrator.Metadata, d time.Duration) {
	t := metrics.Turn{
		Routed:           meta.RoutedToSpecialist,
		SpecialistUsed:   meta.SpecialistUsed,
		GenerationFailed: meta.GenerationFailed,
		PromptTokens:     meta.PromptTokens,
		CompletionTokens: meta.CompletionTokens,
		Duration:         d,
	}
	if meta.Critique != nil {
		t.Critiqued = true
		t.CritiqueScore = meta.Critique.OverallScore
		t.CritiqueFallback = meta.Critique.Fallback
	}
	s.metrics.ObserveTurn(t)
}

type conversationMessage struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp string                 `json:"timestamp"`
	Metadata  *orchestrator.Metadata `json:"metadata,omitempty"`
}

// recordConversation stores the exchange and returns its id, or "" when it
// could not be stored.
func (s *Service) recordConversation(userID, message, response string, meta orchestrator.Metadata) string {
	now := s.now()
	ts := now.Format(time.RFC3339)
	msgs, err := json.Marshal([]conversationMessage{
		{Role: memory.RoleUser, Content: message, Timestamp: ts},
		{Role: memory.RoleAssistant, Content: response, Timestamp: ts, Metadata: &meta},
	})
	if err != nil {
		slog.Warn("encoding conversation failed", "user", memory.ShortID(userID), "error", err)
		return ""
	}

	id, err := s.docs.SaveConversation(storage.Conversation{
		UserID:       userID,
		Title:        Title(message),
		Messages:     string(msgs),
		MessageCount: 2,
		CreatedAt:    now,
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, storage.ErrNotFound) {
			level = slog.LevelDebug
		}
		slog.Log(context.Background(), level, "saving conversation failed", "user", memory.ShortID(userID), "error", err)
		return ""
	}
	return id
}

// Title derives a conversation title from the first message.
func Title(message string) string {
	r := []rune(message)
	if len(r) <= titleRunes {
		return message
	}
	return string(r[:titleRunes]) + "..."
}

// GetStats returns the account counters and, when an orchestrator can be
// built, its statistics.
func (s *Service) GetStats(ctx context.Context, userID string) (UserStats, error) {
	u, err := s.user(userID)
	if err != nil {
		return UserStats{}, err
	}
	out := UserStats{
		UserID: userID,
		Account: AccountStats{
			TotalConversations: u.TotalConversations,
			TotalTokensUsed:    u.TotalTokensUsed,
			CreatedAt:          u.CreatedAt,
			LastLogin:          u.LastLogin,
			APIKeysConfigured:  u.APIKeysConfigured,
		},
	}
	if o, err := s.instance(ctx, userID); err == nil {
		st := o.Stats()
		out.AI = &st
	}
	return out, nil
}

// ClearMemory wipes the user's learned state. A cached orchestrator is reset
// in place; otherwise only the stored record is deleted, after any pending
// write of it.
func (s *Service) ClearMemory(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if o, ok := s.cache.Peek(userID); ok {
		return o.Clear(ctx)
	}
	// An evicted instance may still be saving its state.
	if err := s.cache.WaitSaved(ctx, userID); err != nil {
		return err
	}
	if s.writer != nil {
		s.writer.Discard(userID)
	}
	if err := s.memory.Clear(ctx, userID); err != nil {
		slog.Error("clearing memory failed", "user", memory.ShortID(userID), "error", err)
		return err
	}
	return nil
}

// Init resolves the user's orchestrator and reports its state.
func (s *Service) Init(ctx context.Context, userID string) (InitResult, error) {
	u, err := s.user(userID)
	if err != nil {
		return InitResult{}, err
	}
	o, err := s.instance(ctx, userID)
	if err != nil {
		return InitResult{}, err
	}
	st := o.Stats()
	return InitResult{
		UserID:              userID,
		Stats:               st,
		SpecialistAvailable: st.Specialist.Available,
		APIKeysConfigured:   u.APIKeysConfigured,
	}, nil
}

func (s *Service) user(userID string) (storage.User, error) {
	if err := validateUserID(userID); err != nil {
		return storage.User{}, err
	}
	u, err := s.docs.GetUser(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, ErrUserNotFound
	}
	return u, err
}

// AccountStats are the counters kept in the account store.
type AccountStats struct {
	TotalConversations int       `json:"total_conversations"`
	TotalTokensUsed    int64     `json:"total_tokens_used"`
	CreatedAt          time.Time `json:"created_at"`
	LastLogin          time.Time `json:"last_login"`
	APIKeysConfigured  bool      `json:"api_keys_configured"`
}

// UserStats combines account counters with orchestrator statistics.
type UserStats struct {
	UserID  string              `json:"user_id"`
	Account AccountStats        `json:"account"`
	AI      *orchestrator.Stats `json:"ai_stats,omitempty"`
}

// InitResult is returned by Init.
type InitResult struct {
	UserID              string             `json:"user_id"`
	Stats               orchestrator.Stats `json:"stats"`
	SpecialistAvailable bool               `json:"gemini_available"`
	APIKeysConfigured   bool               `json:"api_keys_configured"`
}
