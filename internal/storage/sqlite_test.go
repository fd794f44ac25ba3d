package storage

import (
	"context"
	"fmt"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/mavkus/internal/memory"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateUser(t *testing.T, s *Store, id string) {
	t.Helper()
	_, err := s.CreateOrUpdateUserProfile(id, id+"@example.com", "", "")
	require.NoError(t, err, "creating user %s", id)
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	v1, err := s1.AppliedMigrations()
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.IsIncreasing(t, versions)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql": {Data: []byte("SELECT 1")},
		"migrations/002_next.sql":  {Data: []byte("SELECT 1")},
		"migrations/001_init.sql":  {Data: []byte("SELECT 1")},
		"migrations/README.md":     {Data: []byte("notes")},
	}

	got, err := listMigrations(fsys)
	require.NoError(t, err)
	versions := make([]int, len(got))
	for i, m := range got {
		versions[i] = m.version
	}
	assert.Equal(t, []int{1, 2, 10}, versions)

	bad := fstest.MapFS{"migrations/init.sql": {Data: []byte("SELECT 1")}}
	_, err = listMigrations(bad)
	assert.Error(t, err, "unnumbered migration")
}

// TestTablesExist verifies that the initial migration creates every table.
func TestTablesExist(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{"users", "conversations", "user_memories"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s", table)
	}
}

func TestCreateOrUpdateUserProfile(t *testing.T) {
	s := openTestStore(t)

	created, err := s.CreateOrUpdateUserProfile("u1", "ada@example.com", "Ada", "")
	require.NoError(t, err)
	assert.True(t, created)

	u, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada", u.DisplayName)
	assert.Equal(t, "free", u.Plan)
	assert.False(t, u.APIKeysConfigured)
	assert.Zero(t, u.TotalConversations)
	assert.Zero(t, u.TotalTokensUsed)

	created, err = s.CreateOrUpdateUserProfile("u1", "other@example.com", "", "https://img/ada.png")
	require.NoError(t, err)
	assert.False(t, created)

	u, err = s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.DisplayName, "empty display name must not overwrite")
	assert.Equal(t, "https://img/ada.png", u.PhotoURL)
	assert.Equal(t, "ada@example.com", u.Email, "email must not change on update")
}

func TestGetUserNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetUser("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAPIKeys(t *testing.T) {
	s := openTestStore(t)
	mustCreateUser(t, s, "u1")

	require.NoError(t, s.SaveAPIKeys("u1", APIKeys{Groq: "enc-groq"}))
	keys, err := s.GetAPIKeys("u1")
	require.NoError(t, err)
	assert.Equal(t, APIKeys{Groq: "enc-groq"}, keys)
	u, _ := s.GetUser("u1")
	assert.True(t, u.APIKeysConfigured)

	require.NoError(t, s.SaveAPIKeys("u1", APIKeys{}))
	u, _ = s.GetUser("u1")
	assert.False(t, u.APIKeysConfigured, "cleared keys")

	assert.ErrorIs(t, s.SaveAPIKeys("missing", APIKeys{Groq: "x"}), ErrNotFound)
	_, err = s.GetAPIKeys("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversations(t *testing.T) {
	s := openTestStore(t)
	mustCreateUser(t, s, "u1")

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.SaveConversation(Conversation{
			UserID:       "u1",
			Title:        fmt.Sprintf("conv %d", i),
			Messages:     `[{"role":"user","content":"ciao"}]`,
			MessageCount: 2,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	u, _ := s.GetUser("u1")
	assert.Equal(t, 3, u.TotalConversations)

	convs, err := s.GetConversations("u1", 2)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, ids[2], convs[0].ID, "newest first")
	assert.Equal(t, ids[1], convs[1].ID)
	assert.Equal(t, 2, convs[0].MessageCount)
	assert.NotEmpty(t, convs[0].Messages)

	require.NoError(t, s.DeleteConversation("u1", ids[0]))
	assert.ErrorIs(t, s.DeleteConversation("u1", ids[0]), ErrNotFound)
	u, _ = s.GetUser("u1")
	assert.Equal(t, 2, u.TotalConversations)

	all, _ := s.GetConversations("u1", 0)
	assert.Len(t, all, 2, "default limit")
}

func TestSaveConversation_UnknownUser(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SaveConversation(Conversation{UserID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
	convs, _ := s.GetConversations("ghost", 10)
	assert.Empty(t, convs)
}

func TestDeleteConversation_OtherUser(t *testing.T) {
	s := openTestStore(t)
	mustCreateUser(t, s, "u1")
	mustCreateUser(t, s, "u2")

	id, err := s.SaveConversation(Conversation{UserID: "u1", Title: "mine"})
	require.NoError(t, err)
	assert.ErrorIs(t, s.DeleteConversation("u2", id), ErrNotFound)
}

func TestIncrementTokenUsage(t *testing.T) {
	s := openTestStore(t)
	mustCreateUser(t, s, "u1")

	for _, n := range []int{120, 80} {
		require.NoError(t, s.IncrementTokenUsage("u1", n))
	}
	u, _ := s.GetUser("u1")
	assert.Equal(t, int64(200), u.TotalTokensUsed)
	assert.ErrorIs(t, s.IncrementTokenUsage("missing", 1), ErrNotFound)
}

func TestMemoryTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := s.Memories()

	_, err := m.Get(ctx, "u1")
	require.ErrorIs(t, err, memory.ErrNotFound)

	require.NoError(t, m.Put(ctx, "u1", []byte(`{"v":1}`)))
	require.NoError(t, m.Put(ctx, "u1", []byte(`{"v":2}`)), "overwrite")
	data, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))

	require.NoError(t, m.Delete(ctx, "u1"))
	require.NoError(t, m.Delete(ctx, "u1"), "deleting twice")
}

func TestMemoryTable_WithMemoryStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	store := memory.NewStore(s.Memories())

	st := memory.NewState("u1")
	st.Profile.ConversationCount = 5
	st.ChatHistory = append(st.ChatHistory, memory.ChatMessage{Role: memory.RoleUser, Content: "ciao"})
	require.NoError(t, store.Save(ctx, st))

	loaded, ok := store.Load(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, 5, loaded.Profile.ConversationCount)
	assert.Len(t, loaded.ChatHistory, 1)
}
