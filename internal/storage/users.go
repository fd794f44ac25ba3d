package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const userColumns = `id, email, display_name, photo_url, plan, api_keys_configured,
	total_conversations, total_tokens_used, created_at, last_login, updated_at`

// CreateOrUpdateUserProfile creates the user or, if it exists, refreshes
// last_login and any non-empty display name or photo. It reports whether a
// new row was created.
func (s *Store) CreateOrUpdateUserProfile(id, email, displayName, photoURL string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning profile transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM users WHERE id = ?", id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}

	if exists > 0 {
		_, err = tx.Exec(`
			UPDATE users SET
				last_login = ?,
				display_name = CASE WHEN ? <> '' THEN ? ELSE display_name END,
				photo_url = CASE WHEN ? <> '' THEN ? ELSE photo_url END,
				updated_at = ?
			WHERE id = ?`,
			now, displayName, displayName, photoURL, photoURL, now, id,
		)
	} else {
		_, err = tx.Exec(`
			INSERT INTO users (id, email, display_name, photo_url, created_at, last_login, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, email, displayName, photoURL, now, now, now,
		)
	}
	if err != nil {
		return false, fmt.Errorf("writing user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing user: %w", err)
	}
	return exists == 0, nil
}

func (s *Store) GetUser(id string) (User, error) {
	var u User
	var configured int
	var createdAt, lastLogin, updatedAt string
	err := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PhotoURL, &u.Plan, &configured,
		&u.TotalConversations, &u.TotalTokensUsed, &createdAt, &lastLogin, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.APIKeysConfigured = configured != 0

	for _, f := range []struct {
		src string
		dst *time.Time
	}{{createdAt, &u.CreatedAt}, {lastLogin, &u.LastLogin}, {updatedAt, &u.UpdatedAt}} {
		t, err := time.Parse(time.RFC3339, f.src)
		if err != nil {
			return User{}, fmt.Errorf("parsing user timestamp: %w", err)
		}
		*f.dst = t
	}
	return u, nil
}

// SaveAPIKeys replaces the stored credentials of a user. Values must already
// be encrypted.
func (s *Store) SaveAPIKeys(userID string, keys APIKeys) error {
	configured := 0
	if keys.Configured() {
		configured = 1
	}
	res, err := s.db.Exec(`
		UPDATE users SET groq_api_key = ?, gemini_api_key = ?, api_keys_configured = ?, updated_at = ?
		WHERE id = ?`,
		keys.Groq, keys.Gemini, configured, time.Now().UTC().Format(time.RFC3339), userID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// GetAPIKeys returns the stored (encrypted) credentials of a user.
func (s *Store) GetAPIKeys(userID string) (APIKeys, error) {
	var k APIKeys
	err := s.db.QueryRow("SELECT groq_api_key, gemini_api_key FROM users WHERE id = ?", userID).Scan(&k.Groq, &k.Gemini)
	if err == sql.ErrNoRows {
		return APIKeys{}, ErrNotFound
	}
	return k, err
}

func (s *Store) IncrementTokenUsage(userID string, n int) error {
	res, err := s.db.Exec(`
		UPDATE users SET total_tokens_used = total_tokens_used + ?, updated_at = ? WHERE id = ?`,
		n, time.Now().UTC().Format(time.RFC3339), userID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
