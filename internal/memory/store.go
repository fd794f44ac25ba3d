package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotFound is returned by a BlobStore when no record exists for an id.
var ErrNotFound = errors.New("memory record not found")

// BlobStore is a key-value store of serialized user states.
type BlobStore interface {
	Get(ctx context.Context, userID string) ([]byte, error)
	Put(ctx context.Context, userID string, data []byte) error
	Delete(ctx context.Context, userID string) error
}

// Store reads and writes State documents. Failures are logged and never
// stop a turn: a failed read looks like a missing record and a failed write
// leaves the in-memory state authoritative.
type Store struct {
	blobs  BlobStore
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates a Store over blobs.
func NewStore(blobs BlobStore) *Store {
	return &Store{blobs: blobs, now: time.Now, logger: slog.Default()}
}

// Save writes st, overwriting any previous record, and keeps the last
// MaxPersistedMessages messages. It stamps last_saved with the current time.
// Only messages without a timestamp are stamped; messages that already carry
// one keep it across saves. The returned error has already been logged.
func (s *Store) Save(ctx context.Context, st State) error {
	data, err := s.encode(st)
	if err != nil {
		s.logger.Error("encoding memory failed", "user", ShortID(st.UserID), "error", err)
		return err
	}
	if err := s.blobs.Put(ctx, st.UserID, data); err != nil {
		s.logger.Error("saving memory failed", "user", ShortID(st.UserID), "error", err)
		return fmt.Errorf("saving memory: %w", err)
	}
	s.logger.Info("memory saved", "user", ShortID(st.UserID), "messages", min(len(st.ChatHistory), MaxPersistedMessages))
	return nil
}

// Persist saves st and discards the error.
func (s *Store) Persist(ctx context.Context, st State) {
	_ = s.Save(ctx, st)
}

func (s *Store) encode(st State) ([]byte, error) {
	now := s.now().Format(time.RFC3339)

	out := st
	out.LastSaved = now
	history := keepLast(st.ChatHistory, MaxPersistedMessages)
	out.ChatHistory = make([]ChatMessage, len(history))
	for i, m := range history {
		if m.Timestamp == "" {
			m.Timestamp = now
		}
		out.ChatHistory[i] = m
	}
	return json.Marshal(out)
}

// Load returns the stored state for userID. The boolean is false when no
// usable record exists, including read failures and corrupt documents.
func (s *Store) Load(ctx context.Context, userID string) (State, bool) {
	data, err := s.blobs.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("no stored memory", "user", ShortID(userID))
		return State{}, false
	}
	if err != nil {
		s.logger.Warn("loading memory failed", "user", ShortID(userID), "error", err)
		return State{}, false
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("corrupt memory record", "user", ShortID(userID), "error", err)
		return State{}, false
	}
	st.normalize(userID)
	s.logger.Info("memory loaded", "user", ShortID(userID), "messages", len(st.ChatHistory))
	return st, true
}

// Clear deletes the record for userID. Deleting a missing record succeeds.
func (s *Store) Clear(ctx context.Context, userID string) error {
	err := s.blobs.Delete(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clearing memory: %w", err)
	}
	return nil
}

// ShortID truncates a user id for logging.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
