package profile

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	p := New()

	assert.Equal(t, StyleNeutral, p.Style)
	assert.Equal(t, "medium", p.PreferredResponseLength)
	assert.Equal(t, "medium", p.LanguageLevel)
	assert.NotNil(t, p.TopicsOfInterest)
	assert.NotNil(t, p.QualityMetrics.ImprovementTrend)
	assert.Zero(t, p.ConversationCount)
}

func TestClassifyStyle_Rules(t *testing.T) {
	tests := []struct {
		message string
		want    Style
	}{
		{"Gentilmente, mi spieghi la fotosintesi?", StyleFormal},
		{"puoi farlo per favore", StyleFormal},
		{"Ciao! come va?", StyleCasual},
		{"hey, una domanda", StyleCasual},
		{"questa funzione non compila", StyleTechnical},
		{"guarda il CODICE", StyleTechnical},
		{"che tempo fa domani", StyleNeutral},
		// First matching rule wins.
		{"ciao, per favore controlla il codice", StyleFormal},
		{"ciao, controlla il codice", StyleCasual},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStyle(tt.message))
		})
	}
}

func TestStyleRules_EveryCueClassifies(t *testing.T) {
	for _, rule := range StyleRules {
		for _, cue := range rule.Cues {
			assert.Equal(t, rule.Style, ClassifyStyle("xx "+cue+" yy"), "cue %q", cue)
		}
	}
}

func TestObserve_StyleIsOverwritten(t *testing.T) {
	p := New()
	p.Observe("per favore aiutami")
	require.Equal(t, StyleFormal, p.Style)

	p.Observe("quanto fa due più due")
	assert.Equal(t, StyleNeutral, p.Style)
}

func TestObserve_AppendsInterestsOnce(t *testing.T) {
	p := New()
	p.Observe("Parliamo di fisica e di python")
	p.Observe("ancora fisica")

	assert.Equal(t, []string{"fisica", "python"}, p.TopicsOfInterest)
}

func TestObserve_TopicsCappedFIFO(t *testing.T) {
	p := New()
	all := append(append([]string{}, ScienceInterests...), CodingInterests...)
	for _, kw := range all {
		p.Observe("tema: " + kw)
		require.LessOrEqual(t, len(p.TopicsOfInterest), MaxTopics)
	}
	require.Len(t, p.TopicsOfInterest, MaxTopics)

	// Force eviction with a pre-filled list.
	p.TopicsOfInterest = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	p.Observe("algoritmo")

	assert.Len(t, p.TopicsOfInterest, MaxTopics)
	assert.Equal(t, "b", p.TopicsOfInterest[0], "oldest entry must be evicted")
	assert.Equal(t, "algoritmo", p.TopicsOfInterest[MaxTopics-1])
}

func TestLearn_AverageIsArithmeticMean(t *testing.T) {
	p := New()
	for _, score := range []float64{8, 6, 10} {
		p.ConversationCount++
		p.Learn(score, nil)
	}
	assert.InDelta(t, 8.0, p.QualityMetrics.AvgResponseScore, 1e-9)
	assert.Equal(t, []float64{8, 6, 10}, p.QualityMetrics.ImprovementTrend)
}

func TestLearn_AverageIndependentOfTrendTruncation(t *testing.T) {
	p := New()
	var sum float64
	for i := 1; i <= 50; i++ {
		score := float64(i%10 + 1)
		sum += score
		p.ConversationCount++
		p.Learn(score, nil)
	}

	assert.Len(t, p.QualityMetrics.ImprovementTrend, MaxTrend)
	assert.InDelta(t, sum/50, p.QualityMetrics.AvgResponseScore, 1e-9)
}

func TestLearn_ZeroConversationCountDoesNotDivideByZero(t *testing.T) {
	p := New()
	p.Learn(7, nil)
	assert.InDelta(t, 7.0, p.QualityMetrics.AvgResponseScore, 1e-9)
}

func TestLearn_StrongAndWeakAreas(t *testing.T) {
	p := New()
	p.ConversationCount = 1
	p.Learn(7, []AreaScore{
		{Area: "rilevanza", Score: 9},
		{Area: "chiarezza", Score: 8},
		{Area: "completezza", Score: 6},
		{Area: "accuratezza", Score: 5},
		{Area: "utilita", Score: 2},
	})

	assert.Equal(t, []string{"rilevanza", "chiarezza"}, p.QualityMetrics.StrongAreas)
	assert.Equal(t, []string{"accuratezza", "utilita"}, p.QualityMetrics.WeakAreas)

	// A criterion can appear in both lists across turns but never twice in one.
	p.ConversationCount = 2
	p.Learn(7, []AreaScore{{Area: "rilevanza", Score: 3}, {Area: "chiarezza", Score: 10}})

	assert.Equal(t, []string{"rilevanza", "chiarezza"}, p.QualityMetrics.StrongAreas)
	assert.Equal(t, []string{"accuratezza", "utilita", "rilevanza"}, p.QualityMetrics.WeakAreas)
}

func TestLearn_AreasCappedFIFO(t *testing.T) {
	p := New()
	for i := 0; i < 12; i++ {
		p.ConversationCount++
		p.Learn(7, []AreaScore{
			{Area: fmt.Sprintf("strong-%d", i), Score: 9},
			{Area: fmt.Sprintf("weak-%d", i), Score: 1},
		})
		require.LessOrEqual(t, len(p.QualityMetrics.StrongAreas), MaxAreas)
		require.LessOrEqual(t, len(p.QualityMetrics.WeakAreas), MaxAreas)
	}
	assert.Equal(t, "strong-7", p.QualityMetrics.StrongAreas[0])
	assert.Equal(t, "weak-11", p.QualityMetrics.WeakAreas[MaxAreas-1])
}

func TestClone_IsDeep(t *testing.T) {
	p := New()
	p.Observe("fisica")
	p.ConversationCount = 1
	p.Learn(9, []AreaScore{{Area: "chiarezza", Score: 9}})

	cp := p.Clone()
	cp.TopicsOfInterest[0] = "changed"
	cp.QualityMetrics.StrongAreas[0] = "changed"
	cp.QualityMetrics.ImprovementTrend[0] = 1

	assert.Equal(t, "fisica", p.TopicsOfInterest[0])
	assert.Equal(t, "chiarezza", p.QualityMetrics.StrongAreas[0])
	assert.Equal(t, 9.0, p.QualityMetrics.ImprovementTrend[0])
}

func TestNormalize_FillsNilsAndCaps(t *testing.T) {
	p := Profile{TopicsOfInterest: make([]string, 15)}
	p.Normalize()

	assert.Equal(t, StyleNeutral, p.Style)
	assert.Len(t, p.TopicsOfInterest, MaxTopics)
	assert.NotNil(t, p.QualityMetrics.WeakAreas)
	assert.Equal(t, "medium", p.LanguageLevel)
}

func TestSummary(t *testing.T) {
	p := New()
	p.Observe("ciao, parliamo di chimica")
	p.ConversationCount = 1
	p.Learn(8, []AreaScore{{Area: "chiarezza", Score: 9}, {Area: "utilita", Score: 4}})

	s := p.Summary()
	assert.Contains(t, s, "Style: casual.")
	assert.Contains(t, s, "Interests: chimica.")
	assert.Contains(t, s, "Avg score: 8.00")
	assert.Contains(t, s, "Strong: chiarezza.")
	assert.Contains(t, s, "Weak: utilita.")
}

func TestSummary_Truncated(t *testing.T) {
	p := New()
	p.TopicsOfInterest = []string{strings.Repeat("à", 400)}
	s := p.Summary()
	assert.LessOrEqual(t, len(s), maxSummaryChars)
}
