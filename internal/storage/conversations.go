package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultConversationLimit is used when GetConversations gets limit <= 0.
const DefaultConversationLimit = 20

// SaveConversation stores c under a new id and bumps the user's
// total_conversations. It returns the generated id.
func (s *Store) SaveConversation(c Conversation) (string, error) {
	id := uuid.New().String()
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	messages := c.Messages
	if messages == "" {
		messages = "[]"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning conversation transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE users SET total_conversations = total_conversations + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), c.UserID,
	)
	if err != nil {
		return "", fmt.Errorf("updating conversation counter: %w", err)
	}
	if err := expectOne(res); err != nil {
		return "", err
	}

	if _, err := tx.Exec(`
		INSERT INTO conversations (id, user_id, title, messages, message_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, c.UserID, c.Title, messages, c.MessageCount, createdAt.UTC().Format(time.RFC3339),
	); err != nil {
		return "", fmt.Errorf("inserting conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing conversation: %w", err)
	}
	return id, nil
}

// GetConversations returns the most recent conversations of a user, newest first.
func (s *Store) GetConversations(userID string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = DefaultConversationLimit
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, title, messages, message_count, created_at
		FROM conversations WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Conversation{}
	for rows.Next() {
		var c Conversation
		var createdAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Messages, &c.MessageCount, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		c.CreatedAt = t
		results = append(results, c)
	}
	return results, rows.Err()
}

// DeleteConversation removes one conversation and decrements the counter.
func (s *Store) DeleteConversation(userID, conversationID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM conversations WHERE id = ? AND user_id = ?", conversationID, userID)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		UPDATE users SET total_conversations = MAX(total_conversations - 1, 0), updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), userID,
	); err != nil {
		return fmt.Errorf("updating conversation counter: %w", err)
	}

	return tx.Commit()
}
