// Command codemind indexes a codebase and answers questions about it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/codemind/codemind/internal/chunker"
	"github.com/codemind/codemind/internal/config"
	"github.com/codemind/codemind/internal/embedding"
	"github.com/codemind/codemind/internal/ingest"
	"github.com/codemind/codemind/internal/llm"
	"github.com/codemind/codemind/internal/rag"
	"github.com/codemind/codemind/internal/rerank"
	"github.com/codemind/codemind/internal/server"
	"github.com/codemind/codemind/internal/store"
	"github.com/codemind/codemind/internal/vectorindex"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "codemind",
		Short: "codebase indexing and question answering",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.codemind/config.yaml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := server.New(app.cfg, app.pipeline, app.rag, app.chunker, app.chat, app.log)
			return srv.Run()
		},
	}

	var commitLimit int
	ingestCmd := &cobra.Command{
		Use:   "ingest <path-or-url>",
		Short: "index a local directory or remote repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			if commitLimit > 0 {
				app = app.withCommitLimit(commitLimit)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, app.pipeline, args[0])
		},
	}
	ingestCmd.Flags().IntVar(&commitLimit, "commits", 0, "override the commit history limit")

	var filterPath string
	var asJSON bool
	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "ask a question about the indexed codebase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.rag.Answer(cmd.Context(), args[0], filterPath)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			fmt.Println(result.Answer)
			if len(result.Context) > 0 {
				fmt.Println("\nSources:")
				for _, item := range result.Context {
					fmt.Printf("  %s (%s, %s)\n", item.File, item.Lines, item.Score)
				}
			}
			return nil
		},
	}
	askCmd.Flags().StringVar(&filterPath, "filter", "", "restrict retrieval to paths containing this substring")
	askCmd.Flags().BoolVar(&asJSON, "json", false, "print the structured result as JSON")

	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles everything the subcommands share.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *store.DB
	index    vectorindex.Index
	embedder embedding.Client
	chunker  *chunker.Chunker
	chunks   *store.ChunkStore
	pipeline *ingest.Pipeline
	rag      *rag.Pipeline
	chat     *store.ChatStore
}

func buildApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	db, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	index, err := vectorindex.NewLocalIndex(cfg.VectorPath())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	embedder, err := embedding.NewClient(&cfg.Embedding)
	if err != nil {
		index.Close()
		db.Close()
		return nil, err
	}
	reranker, err := rerank.NewHTTPReranker(cfg.Rerank.Endpoint, cfg.Rerank.APIKey, cfg.Rerank.Timeout)
	if err != nil {
		index.Close()
		db.Close()
		return nil, err
	}
	generator, err := llm.NewGeminiGenerator(&cfg.LLM)
	if err != nil {
		index.Close()
		db.Close()
		return nil, err
	}

	ck := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	chunks := store.NewChunkStore(db)

	pipeline := ingest.New(ingest.Options{
		ClonePath:   cfg.ClonePath(),
		CommitLimit: cfg.Ingest.CommitLimit,
		FlushEvery:  cfg.Ingest.FlushEvery,
	}, ck, embedder, index, chunks, log)

	ragPipeline := rag.New(embedder, index, chunks, reranker, generator, log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		index:    index,
		embedder: embedder,
		chunker:  ck,
		chunks:   chunks,
		pipeline: pipeline,
		rag:      ragPipeline,
		chat:     store.NewChatStore(db),
	}, nil
}

func (a *app) withCommitLimit(limit int) *app {
	a.pipeline = ingest.New(ingest.Options{
		ClonePath:   a.cfg.ClonePath(),
		CommitLimit: limit,
		FlushEvery:  a.cfg.Ingest.FlushEvery,
	}, a.chunker, a.embedder, a.index, a.chunks, a.log)
	return a
}

func (a *app) Close() {
	if err := a.index.Close(); err != nil {
		a.log.Warn("close vector index", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("close metadata store", zap.Error(err))
	}
	_ = a.log.Sync()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if cfg.Console {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		return zcfg.Build()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// runIngest drives an ingestion from the terminal, with a progress bar
// when stderr is a TTY and plain event lines otherwise.
func runIngest(ctx context.Context, pipeline *ingest.Pipeline, input string) error {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return pipeline.Ingest(ctx, input)
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var failure string
	err := pipeline.Run(ctx, input, func(ev ingest.Event) {
		switch ev.Status {
		case ingest.StatusError:
			failure = ev.Message
		case ingest.StatusComplete:
			_ = bar.Finish()
		case ingest.StatusProcessingFile:
			bar.Describe(ev.File)
			if ev.Progress != nil {
				_ = bar.Set(*ev.Progress)
			}
		default:
			if ev.Message != "" {
				bar.Describe(ev.Message)
			}
		}
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	if failure != "" {
		return fmt.Errorf("ingestion failed: %s", failure)
	}
	fmt.Fprintln(os.Stderr, "Ingestion complete")
	return nil
}
