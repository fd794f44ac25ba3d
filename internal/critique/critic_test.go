package critique

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/mavkus/internal/engine"
)

// mockChatter implements engine.Engine for testing.
type mockChatter struct {
	response string
	err      error
	delay    time.Duration

	got []engine.Message
}

func (m *mockChatter) Model() string { return "critic-test" }

func (m *mockChatter) Chat(ctx context.Context, messages []engine.Message) (string, error) {
	m.got = messages
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

func TestFallback(t *testing.T) {
	f := Fallback()
	assert.Equal(t, 7.0, f.OverallScore)
	require.Len(t, f.Scores, 5)
	for i, c := range Criteria {
		assert.Equal(t, c.Key, f.Scores[i].Area)
		assert.Equal(t, 7.0, f.Scores[i].Score)
	}
	assert.Equal(t, []string{"Risposta generica"}, f.Strengths)
	assert.Equal(t, []string{"Valutazione non disponibile"}, f.Weaknesses)
	assert.Equal(t, "Continua a migliorare", f.ImprovementSuggestion)
	assert.Equal(t, "generale", f.Category)
	assert.True(t, f.Fallback)
}

func TestCritique_Valid(t *testing.T) {
	m := &mockChatter{response: "```json\n" + validPayload + "\n```"}
	c := NewCritic(m, 0).Critique(context.Background(), "Cos'è un atomo?", "Un atomo è...")

	assert.False(t, c.Fallback)
	assert.Equal(t, 7.5, c.OverallScore)

	require.Len(t, m.got, 2)
	assert.Equal(t, engine.RoleSystem, m.got[0].Role)
	assert.Contains(t, m.got[1].Content, "DOMANDA: Cos'è un atomo?")
	assert.Contains(t, m.got[1].Content, "RISPOSTA: Un atomo è...")
	for _, crit := range Criteria {
		assert.Contains(t, m.got[1].Content, crit.Key)
	}
}

func TestCritique_Unparsable(t *testing.T) {
	m := &mockChatter{response: "Ottima risposta, complimenti!"}
	c := NewCritic(m, 0).Critique(context.Background(), "q", "a")
	assert.Equal(t, Fallback(), c)
}

func TestCritique_ChatError(t *testing.T) {
	m := &mockChatter{err: errors.New("connection refused")}
	c := NewCritic(m, 0).Critique(context.Background(), "q", "a")
	assert.Equal(t, Fallback(), c)
}

func TestCritique_Timeout(t *testing.T) {
	m := &mockChatter{response: validPayload, delay: time.Second}
	start := time.Now()
	c := NewCritic(m, 20*time.Millisecond).Critique(context.Background(), "q", "a")
	assert.True(t, c.Fallback)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCritique_NilEngine(t *testing.T) {
	assert.True(t, NewCritic(nil, 0).Critique(context.Background(), "q", "a").Fallback)

	var c *Critic
	assert.True(t, c.Critique(context.Background(), "q", "a").Fallback)
}

func TestBuildPrompt(t *testing.T) {
	msgs := BuildPrompt("domanda", "risposta")
	require.Len(t, msgs, 2)
	assert.Equal(t, criticSystemPrompt, msgs[0].Content)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "Valuta questa risposta AI (1-10)"))
	assert.Contains(t, msgs[1].Content, `"overall_score": 1-10`)
}
