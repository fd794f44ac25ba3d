package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		wantRoute   bool
		wantStrong  bool
		wantMatched []string
	}{
		{
			name:        "no keywords",
			message:     "Come si scrive un ciclo for in Go?",
			wantRoute:   false,
			wantMatched: nil,
		},
		{
			name:        "single weak keyword stays with generalist",
			message:     "Quanta energia consuma un frigorifero?",
			wantRoute:   false,
			wantMatched: []string{"energia"},
		},
		{
			name:        "exactly two keywords route",
			message:     "Che relazione c'è tra energia e forza?",
			wantRoute:   true,
			wantMatched: []string{"energia", "forza"},
		},
		{
			name:        "strong signal alone routes",
			message:     "Mi piace la biologia",
			wantRoute:   true,
			wantStrong:  true,
			wantMatched: []string{"biologia"},
		},
		{
			name:        "case insensitive",
			message:     "TEOREMA ed EQUAZIONE",
			wantRoute:   true,
			wantMatched: []string{"equazione", "teorema"},
		},
		{
			name:        "accented keyword",
			message:     "La gravità e la relatività generale",
			wantRoute:   true,
			wantMatched: []string{"gravità", "relatività"},
		},
		{
			name:        "three keywords with strong signal",
			message:     "Qual è la differenza tra atomo e molecola in chimica?",
			wantRoute:   true,
			wantStrong:  true,
			wantMatched: []string{"chimica", "atomo", "molecola"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.message)
			assert.Equal(t, tt.wantRoute, d.Route)
			assert.Equal(t, tt.wantStrong, d.Strong)
			assert.Equal(t, tt.wantMatched, d.Matched)
			assert.Equal(t, tt.wantRoute, ShouldRoute(tt.message))
		})
	}
}

func TestDecide_EveryStrongSignalRoutesAlone(t *testing.T) {
	for _, kw := range StrongSignals {
		assert.True(t, ShouldRoute("parliamo di "+kw), kw)
	}
}

func TestDecide_EverySingleWeakKeywordDoesNot(t *testing.T) {
	strong := map[string]bool{}
	for _, kw := range StrongSignals {
		strong[kw] = true
	}
	for _, kw := range Keywords {
		if strong[kw] {
			continue
		}
		assert.False(t, ShouldRoute("solo "+kw), kw)
	}
}
