package profile

// Style is the communication register inferred from the user's latest message.
type Style string

const (
	StyleNeutral   Style = "neutral"
	StyleFormal    Style = "formal"
	StyleCasual    Style = "casual"
	StyleTechnical Style = "technical"
)

// Capacities of the bounded profile lists. Oldest entries are evicted first.
const (
	MaxTopics = 10
	MaxTrend  = 20
	MaxAreas  = 5
)

// Profile is the behavioral model kept for a single user. It is pure data
// plus update rules; persistence is handled by the memory package.
type Profile struct {
	Style                   Style          `json:"style"`
	TopicsOfInterest        []string       `json:"topics_of_interest"`
	ConversationCount       int            `json:"conversation_count"`
	PreferredResponseLength string         `json:"preferred_response_length"`
	LanguageLevel           string         `json:"language_level"`
	QualityMetrics          QualityMetrics `json:"quality_metrics"`
}

// QualityMetrics tracks how well responses have scored under self-critique.
type QualityMetrics struct {
	AvgResponseScore float64   `json:"avg_response_score"`
	ImprovementTrend []float64 `json:"improvement_trend"`
	WeakAreas        []string  `json:"weak_areas"`
	StrongAreas      []string  `json:"strong_areas"`
}

// AreaScore is one rubric criterion with the score it received.
type AreaScore struct {
	Area  string
	Score float64
}

// New returns the initial profile for a user seen for the first time.
func New() Profile {
	return Profile{
		Style:                   StyleNeutral,
		TopicsOfInterest:        []string{},
		PreferredResponseLength: "medium",
		LanguageLevel:           "medium",
		QualityMetrics: QualityMetrics{
			ImprovementTrend: []float64{},
			WeakAreas:        []string{},
			StrongAreas:      []string{},
		},
	}
}
