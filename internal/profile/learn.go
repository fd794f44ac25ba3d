package profile

// Score thresholds for classifying rubric criteria.
const (
	StrongThreshold = 8
	WeakThreshold   = 5
)

// Learn folds one critique into the quality metrics.
//
// The running average is updated incrementally using ConversationCount as the
// number of scored turns, so it stays exact even though ImprovementTrend is
// capacity bounded. Criteria scored >= StrongThreshold join StrongAreas and
// criteria scored <= WeakThreshold join WeakAreas; both lists are
// de-duplicated and capped at MaxAreas, evicting the oldest entry.
func (p *Profile) Learn(overall float64, scores []AreaScore) {
	m := &p.QualityMetrics

	n := p.ConversationCount
	if n < 1 {
		n = 1
	}
	m.AvgResponseScore = (m.AvgResponseScore*float64(n-1) + overall) / float64(n)

	m.ImprovementTrend = keepLast(append(m.ImprovementTrend, overall), MaxTrend)

	for _, s := range scores {
		switch {
		case s.Score >= StrongThreshold:
			if !contains(m.StrongAreas, s.Area) {
				m.StrongAreas = append(m.StrongAreas, s.Area)
			}
		case s.Score <= WeakThreshold:
			if !contains(m.WeakAreas, s.Area) {
				m.WeakAreas = append(m.WeakAreas, s.Area)
			}
		}
	}
	m.StrongAreas = keepLast(m.StrongAreas, MaxAreas)
	m.WeakAreas = keepLast(m.WeakAreas, MaxAreas)
}
