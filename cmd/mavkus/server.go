package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/kalambet/mavkus/internal/api"
	"github.com/kalambet/mavkus/internal/config"
	"github.com/kalambet/mavkus/internal/critique"
	"github.com/kalambet/mavkus/internal/engine"
	"github.com/kalambet/mavkus/internal/logging"
	"github.com/kalambet/mavkus/internal/memory"
	"github.com/kalambet/mavkus/internal/metrics"
	"github.com/kalambet/mavkus/internal/ollama"
	"github.com/kalambet/mavkus/internal/orchestrator"
	"github.com/kalambet/mavkus/internal/secrets"
	"github.com/kalambet/mavkus/internal/service"
	"github.com/kalambet/mavkus/internal/specialist"
	"github.com/kalambet/mavkus/internal/storage"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mavkus server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "mavkus version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Generalist.Provider == engine.ProviderOllama {
		client := ollama.New(cfg.Ollama.BaseURL)
		if err := ollama.EnsureReady(ctx, client, cfg.Ollama.Model, os.Stderr); err != nil {
			return err
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	mem, memCloser, err := newMemoryStore(cfg.Memory, store)
	if err != nil {
		return err
	}
	defer memCloser.Close()

	cipher, err := secrets.New(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("initializing encryption: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(reg)

	svc, err := service.New(serviceConfig(cfg), service.Deps{
		Documents: store,
		Memory:    mem,
		Cipher:    cipher,
		Metrics:   recorder,
		Build:     service.NewEngineBuilder(engineConfig(cfg)),
	})
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	handler := api.NewHandler(api.Options{
		Service: svc,
		Metrics: recorder.Handler(),
		Origins: cfg.Server.Origins(),
		Token:   cfg.Server.APIToken,
	})
	if cfg.Server.APIToken == "" {
		slog.Warn("no API token configured, /api routes are unauthenticated")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	if cfg.Server.MCPEnabled {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(svc))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mavkus listening", "addr", addr,
			"provider", cfg.Generalist.Provider,
			"memory_backend", cfg.Memory.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	httpErr := srv.Shutdown(shutdownCtx)
	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Error("saving user state failed", "error", err)
	}
	return httpErr
}

// newMemoryStore opens the configured memory backend. The closer releases
// backend connections.
func newMemoryStore(cfg config.MemoryConfig, store *storage.Store) (*memory.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		rdb, err := memory.OpenRedis(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis memory backend: %w", err)
		}
		blobs := memory.NewRedisBlobStore(rdb, 0)
		return memory.NewStore(blobs), blobs, nil
	case config.BackendMemory:
		slog.Warn("memory backend is in-process, learned state is lost on restart")
		return memory.NewStore(memory.NewMapBlobStore()), nopCloser{}, nil
	default:
		return memory.NewStore(store.Memories()), nopCloser{}, nil
	}
}

func serviceConfig(cfg config.Config) service.Config {
	return service.Config{
		Orchestrator: orchestrator.Config{
			GenerationTimeout: config.Duration(cfg.Generalist.Timeout, orchestrator.DefaultGenerationTimeout),
			CritiqueTimeout:   config.Duration(cfg.Critic.Timeout, critique.DefaultTimeout),
			SaveEvery:         cfg.Memory.SaveEvery,
		},
		CacheSize:        cfg.Cache.Size,
		AsyncPersistence: true,
	}
}

func engineConfig(cfg config.Config) service.EngineConfig {
	gen := engine.Settings{
		Provider:    cfg.Generalist.Provider,
		BaseURL:     cfg.Generalist.BaseURL,
		APIKey:      cfg.Generalist.APIKey,
		Model:       cfg.Generalist.Model,
		Temperature: cfg.Generalist.Temperature,
		MaxTokens:   cfg.Generalist.MaxTokens,
	}
	if gen.Provider == engine.ProviderOllama {
		gen.BaseURL = cfg.Ollama.BaseURL
		gen.Model = cfg.Ollama.Model
	}
	return service.EngineConfig{
		Generalist:        gen,
		CriticTemperature: cfg.Critic.Temperature,
		CriticMaxTokens:   cfg.Critic.MaxTokens,
		Specialist: specialist.GeminiConfig{
			APIKey: cfg.Specialist.APIKey,
			Model:  cfg.Specialist.Model,
		},
		SpecialistTimeout: config.Duration(cfg.Specialist.Timeout, specialist.DefaultTimeout),
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
