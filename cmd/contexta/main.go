// Contexta - retrieval-augmented question answering over your documents.
// Entry point: loads configuration, opens the index, registers providers and
// serves the HTTP API until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contexta-ai/contexta/internal/api"
	"github.com/contexta-ai/contexta/internal/domain/knowledge"
	"github.com/contexta-ai/contexta/internal/domain/rag"
	"github.com/contexta-ai/contexta/internal/extract"
	"github.com/contexta-ai/contexta/internal/infra/config"
	"github.com/contexta-ai/contexta/internal/infra/llm"
	"github.com/contexta-ai/contexta/internal/infra/sqlite"
	"github.com/contexta-ai/contexta/internal/server"
	"github.com/contexta-ai/contexta/internal/version"
)

const shutdownGrace = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("contexta", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	configPath := fs.String("config", "", "Path to YAML config file (overrides environment)")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(out, "usage: contexta [--version] [--config path]") //nolint:errcheck
		return 2
	}
	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := serve(*configPath, log); err != nil {
		log.Error("fatal", "error", err)
		return 1
	}
	return 0
}

func serve(configPath string, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlite.NewDB(cfg.IndexPath)
	if err != nil {
		return fmt.Errorf("open index database: %w", err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		db.Close() //nolint:errcheck
		return fmt.Errorf("run migrations: %w", err)
	}

	registry := llm.NewRegistry()
	opts := llm.Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	embedder, err := registerProviders(context.Background(), cfg, registry, opts, log)
	if err != nil {
		db.Close() //nolint:errcheck
		return err
	}

	// A corrupt persisted index is fatal: refusing to start beats serving
	// wrong answers from a store we cannot trust.
	index, err := knowledge.NewIndex(db, embedder)
	if err != nil {
		db.Close() //nolint:errcheck
		return fmt.Errorf("load index: %w", err)
	}
	info := index.CollectionInfo()
	log.Info("index loaded", "chunks", info.DocumentCount, "dimension", info.Dimension)

	splitter, err := knowledge.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		db.Close() //nolint:errcheck
		return fmt.Errorf("configure splitter: %w", err)
	}
	pipeline, err := rag.NewPipeline(splitter, index, registry, cfg.TopK, cfg.RequestTimeout, log)
	if err != nil {
		db.Close() //nolint:errcheck
		return fmt.Errorf("build pipeline: %w", err)
	}

	router := api.NewRouter(api.Deps{
		Pipeline:      pipeline,
		Registry:      registry,
		Extractor:     extract.NewExtractor(),
		MaxConcurrent: cfg.MaxConcurrent,
	})

	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Host
	srvCfg.Port = cfg.Port
	srv := server.NewServer(router, db, srvCfg, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case sig := <-stop:
		log.Info("signal received", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// registerProviders wires every configured provider into the registry and
// picks the embedder the index will use. Gemini wins when both are
// configured; registration order makes it the default active provider too.
func registerProviders(ctx context.Context, cfg *config.Config, registry *llm.Registry, opts llm.Options, log *slog.Logger) (knowledge.Embedder, error) {
	var embedder knowledge.Embedder

	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbedModel, opts)
		if err != nil {
			return nil, fmt.Errorf("configure gemini: %w", err)
		}
		registry.Register("gemini", gemini)
		embedder = gemini
		log.Info("provider registered", "name", "gemini", "model", cfg.GeminiModel)
	}
	if cfg.OllamaEnabled {
		ollama := llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaChatModel, cfg.OllamaEmbedModel, opts)
		if err := ollama.HealthCheck(ctx); err != nil {
			log.Warn("ollama unreachable at startup, registering anyway", "error", err)
		}
		registry.Register("ollama", ollama)
		if embedder == nil {
			embedder = ollama
		}
		log.Info("provider registered", "name", "ollama", "model", cfg.OllamaChatModel)
	}
	if embedder == nil {
		return nil, fmt.Errorf("no provider configured")
	}
	return embedder, nil
}
