package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/mavkus/internal/engine"
	"github.com/kalambet/mavkus/internal/memory"
	"github.com/kalambet/mavkus/internal/orchestrator"
	"github.com/kalambet/mavkus/internal/specialist"
)

// Keys are a user's decrypted model credentials.
type Keys struct {
	Groq   string `json:"groq_api_key,omitempty"`
	Gemini string `json:"gemini_api_key,omitempty"`
}

// Builder turns a user's credentials into orchestrator collaborators.
type Builder func(ctx context.Context, userID string, keys Keys) (orchestrator.Deps, error)

// EngineConfig holds the process-wide model settings. API keys in it are the
// fallback for users without their own.
type EngineConfig struct {
	Generalist        engine.Settings
	CriticTemperature float64
	CriticMaxTokens   int
	Specialist        specialist.GeminiConfig
	SpecialistTimeout time.Duration
}

// NewEngineBuilder returns the Builder used in production: a generalist and a
// critic on the configured provider and a Gemini specialist when a key is
// available.
func NewEngineBuilder(ec EngineConfig) Builder {
	return func(ctx context.Context, userID string, keys Keys) (orchestrator.Deps, error) {
		gs := ec.Generalist
		if keys.Groq != "" {
			gs.APIKey = keys.Groq
		}
		gen, err := engine.New(gs)
		if err != nil {
			if errors.Is(err, engine.ErrMissingAPIKey) {
				return orchestrator.Deps{}, fmt.Errorf("%w: %w", orchestrator.ErrMissingCredential, err)
			}
			return orchestrator.Deps{}, err
		}

		cs := gs
		cs.Temperature = ec.CriticTemperature
		cs.MaxTokens = ec.CriticMaxTokens
		critic, err := engine.New(cs)
		if err != nil {
			return orchestrator.Deps{}, err
		}

		sc := ec.Specialist
		if keys.Gemini != "" {
			sc.APIKey = keys.Gemini
		}
		adapter, err := specialist.NewAdapter(ctx, sc, specialist.WithTimeout(ec.SpecialistTimeout))
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, specialist.ErrMissingAPIKey) {
				level = slog.LevelInfo
			}
			slog.Log(ctx, level, "specialist unavailable", "user", memory.ShortID(userID), "error", err)
		}

		return orchestrator.Deps{Generalist: gen, Critic: critic, Specialist: adapter}, nil
	}
}
