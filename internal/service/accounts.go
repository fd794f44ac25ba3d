package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/mavkus/internal/memory"
	"github.com/kalambet/mavkus/internal/secrets"
	"github.com/kalambet/mavkus/internal/storage"
)

// CreateProfile creates the account or refreshes its login time. It reports
// whether the account was new.
func (s *Service) CreateProfile(ctx context.Context, userID, email, displayName, photoURL string) (bool, error) {
	if err := validateUserID(userID); err != nil {
		return false, err
	}
	if strings.TrimSpace(email) == "" {
		return false, fmt.Errorf("%w: empty email", ErrInvalidArgument)
	}
	created, err := s.docs.CreateOrUpdateUserProfile(userID, email, displayName, photoURL)
	if err != nil {
		return false, fmt.Errorf("saving profile: %w", err)
	}
	action := "updated"
	if created {
		action = "created"
	}
	slog.Info("user profile "+action, "user", memory.ShortID(userID))
	return created, nil
}

// SaveAPIKeys encrypts and stores the user's credentials, replacing any
// previous ones, and drops the cached orchestrator so the next turn uses
// them. It returns the names of the keys saved.
func (s *Service) SaveAPIKeys(ctx context.Context, userID string, keys Keys) ([]string, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	var stored storage.APIKeys
	var saved []string
	for _, f := range []struct {
		name  string
		plain string
		dst   *string
	}{
		{"groq_api_key", strings.TrimSpace(keys.Groq), &stored.Groq},
		{"gemini_api_key", strings.TrimSpace(keys.Gemini), &stored.Gemini},
	} {
		if f.plain == "" {
			continue
		}
		enc, err := s.cipher.Encrypt(f.plain)
		if err != nil {
			return nil, fmt.Errorf("encrypting %s: %w", f.name, err)
		}
		*f.dst = enc
		saved = append(saved, f.name)
	}

	if err := s.docs.SaveAPIKeys(userID, stored); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("saving api keys: %w", err)
	}

	s.cache.Invalidate(userID)
	s.metrics.SetCachedInstances(s.cache.Len())
	slog.Info("api keys saved", "user", memory.ShortID(userID), "keys", saved)
	return saved, nil
}

// GetAPIKeys returns the user's credentials, masked unless reveal is set.
// Unknown users have no keys.
func (s *Service) GetAPIKeys(ctx context.Context, userID string, reveal bool) (Keys, error) {
	if err := validateUserID(userID); err != nil {
		return Keys{}, err
	}
	keys := s.userKeys(userID)
	if !reveal {
		keys.Groq = secrets.Mask(keys.Groq)
		keys.Gemini = secrets.Mask(keys.Gemini)
	}
	return keys, nil
}

// Conversation is a recorded exchange as returned to clients.
type Conversation struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Messages     json.RawMessage `json:"messages"`
	MessageCount int             `json:"message_count"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Conversations returns the user's most recent conversations, newest first.
func (s *Service) Conversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	rows, err := s.docs.GetConversations(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading conversations: %w", err)
	}
	out := make([]Conversation, 0, len(rows))
	for _, c := range rows {
		msgs := json.RawMessage(c.Messages)
		if !json.Valid(msgs) {
			msgs = json.RawMessage("[]")
		}
		out = append(out, Conversation{
			ID:           c.ID,
			Title:        c.Title,
			Messages:     msgs,
			MessageCount: c.MessageCount,
			CreatedAt:    c.CreatedAt,
		})
	}
	return out, nil
}

// DeleteConversation removes one conversation of the user.
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if err := s.docs.DeleteConversation(userID, conversationID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return nil
}
