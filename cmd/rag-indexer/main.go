package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/andrew/mhw-rag/pkg/app"
	"github.com/andrew/mhw-rag/pkg/chunker"
	"github.com/andrew/mhw-rag/pkg/config"
	"github.com/andrew/mhw-rag/pkg/embedding"
	"github.com/andrew/mhw-rag/pkg/index"
	"github.com/andrew/mhw-rag/pkg/loader"
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
	"data_dir":         "data-dir",
	"index.backend":    "backend",
	"index.collection": "collection",
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "rag-indexer [db-path]",
		Short: "Rebuild the vector index from the saved forecast discussions",
		Long: `Reads every markdown discussion in the data directory, splits it into
overlapping chunks, embeds them with Ollama and replaces the vector
collection with the result. The collection is always rebuilt from scratch.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Setup(app.Options{
				Tool:       "rag-indexer",
				ConfigPath: configPath,
				Debug:      debug,
				Flags:      cmd.Flags(),
				Keys:       flagKeys,
			})
			if err != nil {
				return err
			}
			defer env.Close()
			if len(args) == 1 {
				env.Config.Index.Path = args[0]
			}

			ctx := cmd.Context()
			embedder, err := env.Embedder()
			if err != nil {
				return err
			}
			store, err := env.Store(ctx, embedder)
			if err != nil {
				return err
			}
			defer store.Close()

			_, err = rebuild(ctx, env.Config, env.Splitter(), embedder, store, env.Logger.Logger, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().String("data-dir", "data", "directory containing the markdown discussions")
	cmd.Flags().String("backend", "local", "vector index backend: local, qdrant or chroma")
	cmd.Flags().String("collection", vector.DefaultCollection, "collection name")
	return cmd
}

// rebuild loads the discussions and replaces the collection
func rebuild(ctx context.Context, cfg *config.Config, splitter *chunker.Splitter, embedder embedding.Embedder,
	store vector.Store, logger zerolog.Logger, out io.Writer) (index.Stats, error) {

	docs, err := loader.Load(cfg.DataDir, loader.DefaultPattern)
	if err != nil {
		return index.Stats{}, fmt.Errorf("loading discussions: %w", err)
	}
	if len(docs) == 0 {
		color.New(color.FgYellow).Fprintf(out, "⚠️ No discussions found in %s, the collection will be empty\n", cfg.DataDir)
	} else {
		fmt.Fprintf(out, "📚 Processing %d discussions from %s\n", len(docs), cfg.DataDir)
	}

	rebuilder := index.NewRebuilder(splitter, embedder, store, index.Config{
		Collection:  cfg.Index.Collection,
		Dimensions:  cfg.Embedding.Dimensions,
		EmbedBatch:  cfg.Embedding.BatchSize,
		UpsertBatch: cfg.Index.UpsertBatch,
	}, logger)

	stats, err := rebuilder.Index(ctx, docs)
	if err != nil {
		return stats, fmt.Errorf("indexing failed: %w", err)
	}

	color.New(color.FgGreen).Fprintf(out, "✅ Indexed %d chunks from %d discussions into %s\n",
		stats.Chunks, stats.Documents, cfg.Index.Collection)
	fmt.Fprintf(out, "   model %s, %d dimensions, took %s\n", stats.Model, stats.Dimensions, stats.Duration.Round(time.Millisecond))
	return stats, nil
}
