package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTurn(t *testing.T) {
	r := New(nil)

	r.ObserveTurn(Turn{Routed: true, SpecialistUsed: true, Critiqued: true, CritiqueScore: 8, PromptTokens: 100, CompletionTokens: 20, Duration: time.Second})
	r.ObserveTurn(Turn{GenerationFailed: true, Critiqued: true, CritiqueScore: 7, CritiqueFallback: true})
	r.ObserveTurn(Turn{})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.turnsTotal.WithLabelValues("true", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.turnsTotal.WithLabelValues("false", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.generationFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.critiqueFallbacks))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.tokensTotal.WithLabelValues("prompt")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "mavkus_critique_score_count 2")
	assert.Contains(t, rec.Body.String(), "mavkus_critique_score_sum 15")
}

func TestObserveMemorySave(t *testing.T) {
	r := New(nil)
	r.ObserveMemorySave(nil)
	r.ObserveMemorySave(nil)
	r.ObserveMemorySave(errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.memorySavesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.memorySavesTotal.WithLabelValues("error")))
}

func TestSetCachedInstances(t *testing.T) {
	r := New(nil)
	r.SetCachedInstances(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.cachedInstances))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveTurn(Turn{Routed: true})
		r.ObserveMemorySave(errors.New("x"))
		r.SetCachedInstances(1)
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler(t *testing.T) {
	r := New(nil)
	r.ObserveTurn(Turn{Routed: true})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mavkus_turns_total{routed="true",specialist_used="false"} 1`)
}
