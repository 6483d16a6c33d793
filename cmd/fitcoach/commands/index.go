package commands

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/fitcoach-go/internal/logging"
)

// NewIndexCmd constructs the `fitcoach index` command, which embeds the
// corpus into the configured vector store.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the exercise index",
		Long: `Embed every corpus document and load the vectors into the vector store.

With QDRANT_HOST set the collection is recreated in Qdrant, so a later
'fitcoach serve' against the same collection starts from a clean index.
Without it the index is built in memory, which only checks that the embedding
backend works.

Environment variables:
  EMBEDDING_PROVIDER   tfidf, ollama, openai, azure, none (default: tfidf)
  QDRANT_HOST          Qdrant server hostname
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: fitcoach)
  CORPUS_PATH          YAML corpus file (default: built-in corpus)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			svc, err := buildService(log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer svc.Close()

			if svc.qdrant != nil {
				if err := svc.qdrant.Ping(ctx); err != nil {
					return fmt.Errorf("index: qdrant unreachable: %w", err)
				}
			}

			start := time.Now()
			if err := svc.index.Build(ctx); err != nil {
				return fmt.Errorf("index: %w", err)
			}

			target := "memory (set QDRANT_HOST to persist)"
			if svc.qdrant != nil {
				target = "qdrant collection " + svc.qdrant.Collection()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents into %s in %s\n",
				svc.corpus.Len(), target, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	return cmd
}
