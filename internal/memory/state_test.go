package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	st := NewState("u1")
	assert.Equal(t, "u1", st.UserID)
	assert.Equal(t, 0, st.Profile.ConversationCount)
	assert.NotNil(t, st.ChatHistory)
	assert.NotNil(t, st.LearnedPatterns.Consultations)
	assert.Empty(t, st.LastSaved)
}

func TestRecordConsultation_Capped(t *testing.T) {
	var lp LearnedPatterns
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 75; i++ {
		lp.RecordConsultation(at, fmt.Sprintf("q%d", i), true)
	}
	require.Len(t, lp.Consultations, MaxConsultations)
	assert.Equal(t, "q25", lp.Consultations[0].Question)
	assert.Equal(t, "q74", lp.Consultations[49].Question)
	assert.Equal(t, "2026-03-01T10:00:00Z", lp.Consultations[0].Timestamp)
}

func TestRecordConsultation_Excerpt(t *testing.T) {
	var lp LearnedPatterns
	long := strings.Repeat("à", 250)
	lp.RecordConsultation(time.Now(), long, true)
	q := lp.Consultations[0].Question
	assert.Equal(t, QuestionExcerptRunes, utf8.RuneCountInString(q))
	assert.True(t, utf8.ValidString(q))
}

func TestRecordCritique(t *testing.T) {
	var lp LearnedPatterns
	lp.RecordCritique("ottima", 9, "")
	lp.RecordCritique("media", 7, "Aggiungi esempi")
	lp.RecordCritique("scarsa", 4, "Sii più preciso")

	assert.Equal(t, []string{"ottima"}, lp.SuccessfulResponses)
	assert.Equal(t, []string{"scarsa"}, lp.FailedResponses)
	assert.Equal(t, []string{"Aggiungi esempi", "Sii più preciso"}, lp.ImprovementStrategies)

	for i := 0; i < 60; i++ {
		lp.RecordCritique("q", 10, "s")
	}
	assert.Len(t, lp.SuccessfulResponses, MaxPatternEntries)
	assert.Len(t, lp.ImprovementStrategies, MaxPatternEntries)
}

func TestClone_IsDeep(t *testing.T) {
	st := NewState("u")
	st.ChatHistory = append(st.ChatHistory, ChatMessage{Role: RoleUser, Content: "a"})
	st.Profile.TopicsOfInterest = append(st.Profile.TopicsOfInterest, "fisica")
	st.LearnedPatterns.SuccessfulResponses = append(st.LearnedPatterns.SuccessfulResponses, "x")

	cp := st.Clone()
	cp.ChatHistory[0].Content = "changed"
	cp.Profile.TopicsOfInterest[0] = "changed"
	cp.LearnedPatterns.SuccessfulResponses[0] = "changed"

	assert.Equal(t, "a", st.ChatHistory[0].Content)
	assert.Equal(t, "fisica", st.Profile.TopicsOfInterest[0])
	assert.Equal(t, "x", st.LearnedPatterns.SuccessfulResponses[0])
}
