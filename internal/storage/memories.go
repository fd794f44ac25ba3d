package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/kalambet/mavkus/internal/memory"
)

// MemoryTable exposes the user_memories table as a memory.BlobStore.
type MemoryTable struct {
	db *sql.DB
}

// Memories returns the blob store view of s.
func (s *Store) Memories() *MemoryTable {
	return &MemoryTable{db: s.db}
}

func (m *MemoryTable) Get(ctx context.Context, userID string) ([]byte, error) {
	var data string
	err := m.db.QueryRowContext(ctx, "SELECT data FROM user_memories WHERE user_id = ?", userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (m *MemoryTable) Put(ctx context.Context, userID string, data []byte) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO user_memories (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (m *MemoryTable) Delete(ctx context.Context, userID string) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM user_memories WHERE user_id = ?", userID)
	return err
}
