package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/andrew/mhw-rag/pkg/app"
	"github.com/andrew/mhw-rag/pkg/conversation"
	"github.com/andrew/mhw-rag/pkg/llm"
	"github.com/andrew/mhw-rag/pkg/retrieval"
	"github.com/andrew/mhw-rag/pkg/vector"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "😡 %v\n", err)
		os.Exit(1)
	}
}

// flagKeys binds flags over config keys
var flagKeys = map[string]string{
	"retrieval.top_k":     "top-k",
	"retrieval.threshold": "threshold",
	"index.path":          "db",
	"index.backend":       "backend",
	"llm.model":           "model",
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		showPrompt bool
	)

	cmd := &cobra.Command{
		Use:   "ollama-rag",
		Short: "Ask questions about the marine heatwave forecast discussions",
		Long: `Starts an interactive session. Each question is embedded, matched
against the indexed discussions and answered by a local Ollama model
using the best passages as context. Type 'quit' or 'exit', or press
Ctrl+C, to stop. The index is never modified.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Setup(app.Options{
				Tool:       "ollama-rag",
				ConfigPath: configPath,
				Debug:      debug,
				Flags:      cmd.Flags(),
				Keys:       flagKeys,
			})
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			embedder, err := env.Embedder()
			if err != nil {
				return err
			}
			store, err := env.ReadStore(ctx, embedder)
			if err != nil {
				return loadError(err)
			}
			defer store.Close()
			client, err := env.LLM()
			if err != nil {
				return err
			}
			defer client.Close()

			cfg := conversation.Config{
				TopK:           env.Config.Retrieval.TopK,
				Threshold:      env.Config.Retrieval.Threshold,
				MaxPromptChars: env.Config.Prompt.MaxChars,
				Model:          env.Config.ModelConfig(),
				ShowPrompt:     showPrompt,
			}
			retriever := retrieval.NewRetriever(embedder, store, env.Config.Retrieval.Delimiter, env.Logger.Logger)
			return chat(ctx, session{
				retriever: retriever,
				client:    client,
				cfg:       cfg,
				dbPath:    env.Config.Index.Path,
				in:        cmd.InOrStdin(),
				out:       cmd.OutOrStdout(),
				logger:    env.Logger.Logger,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().Int("top-k", retrieval.DefaultTopK, "number of passages to retrieve")
	cmd.Flags().Float64("threshold", retrieval.DefaultThreshold, "minimum relevance score of a passage")
	cmd.Flags().String("db", "./chroma_db", "path of the local vector index")
	cmd.Flags().String("backend", "local", "vector index backend: local, qdrant or chroma")
	cmd.Flags().String("model", llm.DefaultModel, "Ollama model used to answer")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "print every composed prompt before generation")
	return cmd
}

// checker verifies the index before the session starts
type checker interface {
	retrieval.Service
	Check(ctx context.Context) (vector.CollectionInfo, error)
}

type session struct {
	retriever checker
	client    llm.Client
	cfg       conversation.Config
	dbPath    string
	in        io.Reader
	out       io.Writer
	logger    zerolog.Logger
}

// chat checks the index and the model, then runs the question loop
func chat(ctx context.Context, s session) error {
	p := newPrinter(s.out)
	p.banner()

	fmt.Fprintln(s.out, "Loading embedding database...")
	info, err := s.retriever.Check(ctx)
	if err != nil {
		return loadError(err)
	}
	p.ok("Database loaded from: %s (%d chunks, %s)", s.dbPath, info.Count, info.Model)

	fmt.Fprintln(s.out, "Initializing language model...")
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("error loading model: %w; make sure %s is installed in Ollama", err, s.client.ModelName())
	}
	p.ok("Model loaded: %s", s.client.ModelName())
	p.started()

	loop := conversation.NewLoop(s.retriever, s.client, s.cfg, p, s.logger)
	h, err := loop.Run(ctx, s.in, conversation.History{})
	s.logger.Debug().Int("exchanges", h.Len()).Msg("👋 session ended")
	return err
}

// loadError explains why the index could not be used
func loadError(err error) error {
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return fmt.Errorf("error loading database: %w; make sure you've run rag-indexer first", err)
	}
	return fmt.Errorf("error loading database: %w", err)
}
