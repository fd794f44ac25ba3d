// Package service is the serving layer between the transports and the
// per-user orchestrators. It owns the instance cache, account storage,
// credential encryption and metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/mavkus/internal/cache"
	"github.com/kalambet/mavkus/internal/memory"
	"github.com/kalambet/mavkus/internal/metrics"
	"github.com/kalambet/mavkus/internal/orchestrator"
	"github.com/kalambet/mavkus/internal/secrets"
	"github.com/kalambet/mavkus/internal/storage"
)

// MaxMessageLength is the longest accepted user message, in characters.
const MaxMessageLength = 2000

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// Documents is the account store.
type Documents interface {
	GetUser(id string) (storage.User, error)
	CreateOrUpdateUserProfile(id, email, displayName, photoURL string) (bool, error)
	SaveAPIKeys(userID string, keys storage.APIKeys) error
	GetAPIKeys(userID string) (storage.APIKeys, error)
	SaveConversation(c storage.Conversation) (string, error)
	GetConversations(userID string, limit int) ([]storage.Conversation, error)
	DeleteConversation(userID, conversationID string) error
	IncrementTokenUsage(userID string, n int) error
}

// Config tunes the service.
type Config struct {
	// Orchestrator is the template for every per-user orchestrator. UserID
	// is filled in per user.
	Orchestrator orchestrator.Config
	CacheSize    int
	// AsyncPersistence routes periodic saves through a background writer.
	AsyncPersistence bool
}

// Deps are the collaborators of the service. Documents, Memory, Cipher and
// Build are required.
type Deps struct {
	Documents Documents
	Memory    *memory.Store
	Cipher    *secrets.Cipher
	Metrics   *metrics.Recorder
	Build     Builder
}

// Service implements the operations exposed to the transports.
type Service struct {
	cfg     Config
	docs    Documents
	memory  *observedStore
	writer  *memory.AsyncWriter
	cipher  *secrets.Cipher
	metrics *metrics.Recorder
	build   Builder
	cache   *cache.Cache[*orchestrator.Orchestrator]
	now     func() time.Time
}

// New creates a Service. When cfg.AsyncPersistence is set the background
// writer runs until Shutdown.
func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Documents == nil || deps.Memory == nil || deps.Cipher == nil || deps.Build == nil {
		return nil, fmt.Errorf("%w: documents, memory, cipher and builder are required", ErrInvalidArgument)
	}
	s := &Service{
		cfg:     cfg,
		docs:    deps.Documents,
		memory:  &observedStore{Store: deps.Memory, metrics: deps.Metrics},
		cipher:  deps.Cipher,
		metrics: deps.Metrics,
		build:   deps.Build,
		now:     time.Now,
	}
	if cfg.AsyncPersistence {
		s.writer = memory.NewAsyncWriter(s.memory, 0)
		s.writer.Start(context.Background())
	}

	c, err := cache.New(cfg.CacheSize, s.newOrchestrator)
	if err != nil {
		return nil, err
	}
	s.cache = c
	return s, nil
}

func (s *Service) newOrchestrator(ctx context.Context, userID string) (*orchestrator.Orchestrator, error) {
	keys := s.userKeys(userID)
	deps, err := s.build(ctx, userID, keys)
	if err != nil {
		return nil, &orchestrator.ConfigurationError{UserID: memory.ShortID(userID), Err: err}
	}
	deps.Memory = s.memory
	if s.writer != nil {
		deps.Persister = s.writer
	}

	cfg := s.cfg.Orchestrator
	cfg.UserID = userID
	o, err := orchestrator.New(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	slog.Info("orchestrator instance created", "user", memory.ShortID(userID))
	return o, nil
}

// instance returns the cached orchestrator of userID.
func (s *Service) instance(ctx context.Context, userID string) (*orchestrator.Orchestrator, error) {
	o, err := s.cache.Get(ctx, userID)
	s.metrics.SetCachedInstances(s.cache.Len())
	if err != nil {
		slog.Error("creating orchestrator failed", "user", memory.ShortID(userID), "error", err)
		return nil, err
	}
	return o, nil
}

// userKeys returns the decrypted credentials of userID. Missing users and
// unreadable values yield empty keys so global credentials apply.
func (s *Service) userKeys(userID string) Keys {
	stored, err := s.docs.GetAPIKeys(userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("reading api keys failed", "user", memory.ShortID(userID), "error", err)
		}
		return Keys{}
	}
	var keys Keys
	for _, f := range []struct {
		name string
		src  string
		dst  *string
	}{
		{"groq", stored.Groq, &keys.Groq},
		{"gemini", stored.Gemini, &keys.Gemini},
	} {
		v, err := s.cipher.Decrypt(f.src)
		if err != nil {
			slog.Warn("decrypting api key failed", "user", memory.ShortID(userID), "key", f.name, "error", err)
			continue
		}
		*f.dst = v
	}
	return keys
}

// ValidateMessage checks that message is non-blank and at most
// MaxMessageLength characters.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidMessage)
	}
	if n := utf8.RuneCountInString(message); n > MaxMessageLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrInvalidMessage, n, MaxMessageLength)
	}
	return nil
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	return nil
}

// Shutdown saves every cached instance and drains the background writer.
func (s *Service) Shutdown(ctx context.Context) error {
	flushErr := s.cache.Flush(ctx)
	if flushErr != nil {
		slog.Error("flushing instances failed", "error", flushErr)
	}
	if s.writer != nil {
		if err := s.writer.Close(ctx); err != nil {
			return errors.Join(flushErr, fmt.Errorf("draining memory writer: %w", err))
		}
	}
	return flushErr
}

// observedStore counts memory writes.
type observedStore struct {
	*memory.Store
	metrics *metrics.Recorder
}

func (o *observedStore) Save(ctx context.Context, st memory.State) error {
	err := o.Store.Save(ctx, st)
	o.metrics.ObserveMemorySave(err)
	return err
}

func (o *observedStore) Persist(ctx context.Context, st memory.State) {
	_ = o.Save(ctx, st)
}
