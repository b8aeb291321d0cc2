package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"veritas/internal/config"
	"veritas/internal/knowledge"
	"veritas/internal/llm"
	"veritas/internal/parser"
	"veritas/internal/review"
	"veritas/internal/scm"
	"veritas/internal/server"
	"veritas/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "veritas",
		Short: "LLM-assisted code review service",
	}
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reviewCmd)
}

// buildPipeline wires the store, embedder and reviewer into a pipeline.
// The returned closer releases the store.
func buildPipeline(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*review.Pipeline, func(), error) {
	store, err := storage.NewSQLiteStore(cfg.Review.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open example store: %w", err)
	}

	embedder, err := knowledge.NewEmbedder(ctx, knowledge.EmbedderOptions{
		Provider:  cfg.AI.Provider,
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.EmbedModel,
		Dimension: cfg.AI.Dimension,
		BaseURL:   cfg.AI.BaseURL,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	completer, err := llm.NewReviewer(ctx, llm.ReviewerOptions{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create reviewer: %w", err)
	}

	retriever := knowledge.NewRetriever(embedder, store, logger)
	feedback := knowledge.NewExampleWriter(embedder, store)

	pipeline := review.NewPipeline(retriever, completer, feedback, review.Options{
		CallTimeout: cfg.Review.CallTimeout,
		CacheTTL:    cfg.Review.CacheTTL,
		Logger:      logger,
	})

	return pipeline, func() { store.Close() }, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review API server and webhook receiver",
	Run: func(cmd *cobra.Command, args []string) {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load config")
		}

		ctx := context.Background()
		pipeline, closeStore, err := buildPipeline(ctx, cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build review pipeline")
		}
		defer closeStore()

		var analyzer server.Analyzer
		if cfg.GitLab.Token != "" {
			platform, err := scm.NewGitLabPlatform(cfg.GitLab.Token, cfg.GitLab.BaseURL)
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to create gitlab client")
			}
			processed := scm.NewProcessedSet(cfg.Review.ProcessedWindow, nil)
			analyzer = scm.NewMRAnalyzer(platform, pipeline, processed, cfg.Review.MaxFiles, logger)
		} else {
			logger.Warn().Msg("no gitlab token configured, webhook analysis disabled")
			analyzer = noopAnalyzer{logger}
		}

		srv := server.New(pipeline, analyzer, cfg.GitLab.WebhookSecret, logger)

		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := http.ListenAndServe(cfg.Server.Addr, srv.Routes()); err != nil {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	},
}

type noopAnalyzer struct {
	log zerolog.Logger
}

func (n noopAnalyzer) Analyze(_ context.Context, ev scm.MergeRequestEvent) error {
	n.log.Info().Int("project_id", ev.ProjectID).Int("mr_iid", ev.MRIID).Msg("ignoring merge request event, gitlab integration disabled")
	return nil
}

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Review a single file and print the report",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger().Level(zerolog.WarnLevel)

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}

		ctx := context.Background()
		pipeline, closeStore, err := buildPipeline(ctx, cfg, logger)
		if err != nil {
			log.Fatalf("Failed to build review pipeline: %v", err)
		}
		defer closeStore()

		dec, err := parser.ForFile(path)
		if err != nil {
			fmt.Printf("⚠️  Unsupported file type, reviewing without syntax analysis.\n")
			dec = nil
		}

		fmt.Printf("🔍 Reviewing %s...\n", path)
		start := time.Now()
		state := pipeline.Run(ctx, review.Subject{Name: path, Source: string(data)}, dec)
		fmt.Printf("✅ Done in %v.\n\n", time.Since(start).Round(time.Millisecond))

		fmt.Println(state.Report)
	},
}
