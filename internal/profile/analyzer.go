package profile

import "strings"

// StyleRule maps a set of lexical cues to a Style. Rules are evaluated in
// order and the first rule with a matching cue wins.
type StyleRule struct {
	Style Style
	Cues  []string
}

// StyleRules is the ordered classifier table used by ClassifyStyle.
var StyleRules = []StyleRule{
	{Style: StyleFormal, Cues: []string{"gentilmente", "per favore"}},
	{Style: StyleCasual, Cues: []string{"ciao", "hey"}},
	{Style: StyleTechnical, Cues: []string{"funzione", "codice"}},
}

// Interest keywords, scanned in this order.
var (
	ScienceInterests = []string{"fisica", "chimica", "biologia", "matematica", "scienza"}
	CodingInterests  = []string{"python", "javascript", "programmazione", "codice", "algoritmo"}
)

// ClassifyStyle returns the style of message according to StyleRules, or
// StyleNeutral when no cue matches.
func ClassifyStyle(message string) Style {
	lower := strings.ToLower(message)
	for _, rule := range StyleRules {
		for _, cue := range rule.Cues {
			if strings.Contains(lower, cue) {
				return rule.Style
			}
		}
	}
	return StyleNeutral
}

// Observe applies the per-message update rule: the style is overwritten and
// newly seen interest keywords are appended to TopicsOfInterest, keeping only
// the most recent MaxTopics entries.
func (p *Profile) Observe(message string) {
	p.Style = ClassifyStyle(message)

	lower := strings.ToLower(message)
	for _, kw := range interestKeywords() {
		if strings.Contains(lower, kw) && !contains(p.TopicsOfInterest, kw) {
			p.TopicsOfInterest = append(p.TopicsOfInterest, kw)
		}
	}
	p.TopicsOfInterest = keepLast(p.TopicsOfInterest, MaxTopics)
}

func interestKeywords() []string {
	out := make([]string, 0, len(ScienceInterests)+len(CodingInterests))
	out = append(out, ScienceInterests...)
	return append(out, CodingInterests...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// keepLast drops elements from the front of list until it has at most n.
func keepLast[T any](list []T, n int) []T {
	if len(list) <= n {
		return list
	}
	out := make([]T, n)
	copy(out, list[len(list)-n:])
	return out
}
