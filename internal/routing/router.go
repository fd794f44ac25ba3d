// Package routing decides whether a user message should be answered with the
// help of the science specialist. The decision is a coarse keyword heuristic:
// no stemming, no NLP.
package routing

import "strings"

// MinKeywordMatches is the number of distinct domain keywords that routes a
// message to the specialist on its own.
const MinKeywordMatches = 2

// Keywords are the science/math domain terms counted by Decide.
var Keywords = []string{
	"fisica", "chimica", "biologia", "matematica",
	"atomo", "molecola", "cellula", "equazione",
	"teorema", "energia", "forza", "gravità",
	"relatività", "quantistica", "organico",
}

// StrongSignals route a message regardless of how many other keywords match.
var StrongSignals = []string{"fisica", "chimica", "biologia"}

// Decision is the outcome of Decide.
type Decision struct {
	Route   bool     // consult the specialist
	Matched []string // distinct keywords found, in Keywords order
	Strong  bool     // a strong-signal term was present
}

// Decide evaluates message against the keyword tables. It is pure and safe
// for concurrent use.
func Decide(message string) Decision {
	lower := strings.ToLower(message)

	var d Decision
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			d.Matched = append(d.Matched, kw)
		}
	}
	for _, kw := range StrongSignals {
		if strings.Contains(lower, kw) {
			d.Strong = true
			break
		}
	}
	d.Route = len(d.Matched) >= MinKeywordMatches || d.Strong
	return d
}

// ShouldRoute reports whether message should be sent to the specialist.
func ShouldRoute(message string) bool {
	return Decide(message).Route
}
