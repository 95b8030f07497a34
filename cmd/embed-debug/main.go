package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/andrew/mhw-rag/pkg/app"
	"github.com/andrew/mhw-rag/pkg/embedding"
	"github.com/andrew/mhw-rag/pkg/models"
	"github.com/andrew/mhw-rag/pkg/vector"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "😡 %v\n", err)
		os.Exit(1)
	}
}

// DefaultQuery is the query used by inspect
const DefaultQuery = "what is the marine heatwave(MHW) coverage forecast?"

// previewChars bounds the passage text printed per result
const previewChars = 200

type globalFlags struct {
	configPath string
	debug      bool
}

func (g *globalFlags) setup(cmd *cobra.Command, keys map[string]string) (*app.Env, error) {
	return app.Setup(app.Options{
		Tool:       "embed-debug",
		ConfigPath: g.configPath,
		Debug:      g.debug,
		Flags:      cmd.Flags(),
		Keys:       keys,
	})
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "embed-debug",
		Short:         "Inspect embeddings and the vector index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newSimilarityCmd(g), newInspectCmd(g))
	return cmd
}

func newSimilarityCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "similarity <text> <text>",
		Short: "Compare two texts with the configured embedding model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.setup(cmd, nil)
			if err != nil {
				return err
			}
			defer env.Close()

			embedder, err := env.Embedder()
			if err != nil {
				return err
			}
			return similarity(cmd.Context(), embedder, args[0], args[1], cmd.OutOrStdout())
		},
	}
}

func newInspectCmd(g *globalFlags) *cobra.Command {
	var (
		query  string
		expect string
		k      int
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print collection statistics and the scored results of a test query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.setup(cmd, map[string]string{
				"index.path":       "db",
				"index.backend":    "backend",
				"index.collection": "collection",
			})
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			embedder, err := env.Embedder()
			if err != nil {
				return err
			}
			store, err := env.ReadStore(ctx, embedder)
			if err != nil {
				return err
			}
			defer store.Close()
			return inspect(ctx, embedder, store, lookup{Query: query, Expect: expect, K: k}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&query, "query", DefaultQuery, "query to run against the index")
	cmd.Flags().StringVar(&expect, "expect", "", "text the query is expected to retrieve")
	cmd.Flags().IntVarP(&k, "top-k", "k", 10, "number of results to show")
	cmd.Flags().String("db", "./chroma_db", "path of the local vector index")
	cmd.Flags().String("backend", "local", "vector index backend: local, qdrant or chroma")
	cmd.Flags().String("collection", vector.DefaultCollection, "collection name")
	return cmd
}

// similarity prints the cosine similarity and distance of two texts
func similarity(ctx context.Context, embedder embedding.Embedder, a, b string, out io.Writer) error {
	sim, err := embedding.Similarity(ctx, embedder, a, b)
	if err != nil {
		return fmt.Errorf("comparing texts: %w", err)
	}
	fmt.Fprintf(out, "🔬 Comparing with %s\n", embedder.ModelName())
	fmt.Fprintf(out, "  A: %s\n  B: %s\n", a, b)
	fmt.Fprintf(out, "Cosine similarity: %.4f\n", sim)
	fmt.Fprintf(out, "Cosine distance:   %.4f\n", 1-sim)
	fmt.Fprintf(out, "Relevance score:   %.4f\n", embedding.Relevance(sim))
	return nil
}

type lookup struct {
	Query  string
	Expect string
	K      int
}

// inspect prints the collection statistics and the scored results of a test query
func inspect(ctx context.Context, embedder embedding.Embedder, store vector.Store, p lookup, out io.Writer) error {
	info, err := store.Info(ctx)
	if err != nil {
		return fmt.Errorf("reading collection: %w", err)
	}
	fmt.Fprintln(out, "📊 Database Statistics:")
	fmt.Fprintf(out, "Collection name: %s\n", info.Name)
	fmt.Fprintf(out, "Number of chunks: %d\n", info.Count)
	fmt.Fprintf(out, "Embedding model: %s (%d dimensions)\n", orUnknown(info.Model), info.Dimensions)
	if err := vector.CheckModel(info, embedder.ModelName()); err != nil {
		color.New(color.FgYellow).Fprintf(out, "⚠️ %v\n", err)
	}

	vec, err := embedder.Embed(ctx, p.Query)
	if err != nil {
		return fmt.Errorf("embedding query: %w", err)
	}
	results, err := store.Search(ctx, vec, p.K)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	fmt.Fprintf(out, "\n🔍 Query: %s\n", p.Query)
	fmt.Fprintf(out, "Found %d results with scores\n", len(results))
	for i, r := range results {
		fmt.Fprintf(out, "\nResult %d (Score: %.4f):\n", i+1, r.Score)
		fmt.Fprintf(out, "Source: %s (start_index %s)\n", r.Chunk.Source(), r.Chunk.Metadata[models.MetaStartIndex])
		fmt.Fprintf(out, "Content: %s\n", preview(r.Chunk))
		if p.Expect != "" && matches(r.Chunk.Content, p.Expect) {
			color.New(color.FgGreen).Fprintln(out, "🎯 MATCH FOUND! This chunk contains the expected text")
		}
	}
	return nil
}

func matches(content, expect string) bool {
	expect = strings.TrimSpace(expect)
	return strings.Contains(content, expect) || strings.Contains(expect, content)
}

func preview(c models.Chunk) string {
	r := []rune(c.Content)
	if len(r) <= previewChars {
		return c.Content
	}
	return string(r[:previewChars]) + "..."
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
