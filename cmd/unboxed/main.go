// Command unboxed runs the document QA service: an HTTP API that
// ingests documents, optionally anonymizes them, and answers questions
// against the stored corpus with retrieval-augmented generation.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"unboxed/internal/anonymizer"
	"unboxed/internal/config"
	"unboxed/internal/extract"
	"unboxed/internal/llm"
	"unboxed/internal/metrics"
	"unboxed/internal/rag"
	"unboxed/internal/server"
	"unboxed/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := buildLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storage.RunMigrations(cfg.Database.URL, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := storage.Connect(ctx, &storage.Config{
		URL:             cfg.Database.URL,
		MaxConnections:  cfg.Database.MaxConnections,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	store := storage.NewPostgresStore(pool)

	llmClient, err := llm.NewClient(&llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		ChatModel:      cfg.LLM.ChatModel,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
	}, logger)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	classifier, closeCache, err := buildClassifier(cfg.Anonymizer, llmClient, logger)
	if err != nil {
		return fmt.Errorf("build classifier: %w", err)
	}
	defer closeCache()

	anon := anonymizer.New(classifier, logger)
	m := metrics.New()
	svc := rag.New(store, llmClient, anon, extract.New(), m, logger,
		cfg.Pipeline.ChunkSize, cfg.Pipeline.ContextLimit)

	srv := server.New(cfg.Server, svc, store, m, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

// buildClassifier picks the configured entity classifier. The LLM
// classifier gets an S3-FIFO cache over bbolt so repeated content never
// triggers a second model call.
func buildClassifier(cfg config.AnonymizerConfig, client *llm.Client, logger *zap.Logger) (anonymizer.EntityClassifier, func(), error) {
	switch cfg.Classifier {
	case "llm":
		backing, err := anonymizer.NewBboltCache(cfg.CachePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open detection cache: %w", err)
		}
		cache := anonymizer.NewS3FIFOCache(backing, cfg.CacheCapacity, logger)
		return anonymizer.NewLLMClassifier(client, cache, logger), func() { cache.Close() }, nil
	case "rule", "":
		return anonymizer.NewRuleClassifier(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown classifier %q", cfg.Classifier)
	}
}

func buildLogger(env, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	var cfg zap.Config
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
