package profile

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxSummaryChars caps the summary so it stays readable on one terminal screen.
const maxSummaryChars = 600

// Summary returns a compact one-paragraph description of the profile.
func (p Profile) Summary() string {
	var parts []string

	if p.Style != "" {
		parts = append(parts, fmt.Sprintf("Style: %s.", p.Style))
	}
	parts = append(parts, fmt.Sprintf("Conversations: %d.", p.ConversationCount))

	if len(p.TopicsOfInterest) > 0 {
		parts = append(parts, fmt.Sprintf("Interests: %s.", strings.Join(p.TopicsOfInterest, ", ")))
	}

	m := p.QualityMetrics
	if len(m.ImprovementTrend) > 0 {
		parts = append(parts, fmt.Sprintf("Avg score: %.2f (last %.1f).", m.AvgResponseScore, m.ImprovementTrend[len(m.ImprovementTrend)-1]))
	}
	if len(m.StrongAreas) > 0 {
		parts = append(parts, fmt.Sprintf("Strong: %s.", strings.Join(m.StrongAreas, ", ")))
	}
	if len(m.WeakAreas) > 0 {
		parts = append(parts, fmt.Sprintf("Weak: %s.", strings.Join(m.WeakAreas, ", ")))
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	cp := p
	cp.TopicsOfInterest = cloneSlice(p.TopicsOfInterest)
	cp.QualityMetrics.ImprovementTrend = cloneSlice(p.QualityMetrics.ImprovementTrend)
	cp.QualityMetrics.WeakAreas = cloneSlice(p.QualityMetrics.WeakAreas)
	cp.QualityMetrics.StrongAreas = cloneSlice(p.QualityMetrics.StrongAreas)
	return cp
}

// Normalize replaces nil lists with empty ones so that profiles decoded from
// older or partial records marshal consistently.
func (p *Profile) Normalize() {
	if p.Style == "" {
		p.Style = StyleNeutral
	}
	if p.TopicsOfInterest == nil {
		p.TopicsOfInterest = []string{}
	}
	if p.PreferredResponseLength == "" {
		p.PreferredResponseLength = "medium"
	}
	if p.LanguageLevel == "" {
		p.LanguageLevel = "medium"
	}
	m := &p.QualityMetrics
	if m.ImprovementTrend == nil {
		m.ImprovementTrend = []float64{}
	}
	if m.WeakAreas == nil {
		m.WeakAreas = []string{}
	}
	if m.StrongAreas == nil {
		m.StrongAreas = []string{}
	}
	p.TopicsOfInterest = keepLast(p.TopicsOfInterest, MaxTopics)
	m.ImprovementTrend = keepLast(m.ImprovementTrend, MaxTrend)
	m.WeakAreas = keepLast(m.WeakAreas, MaxAreas)
	m.StrongAreas = keepLast(m.StrongAreas, MaxAreas)
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
