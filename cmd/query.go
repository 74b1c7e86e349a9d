package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hkhalifa/versemind/internal/fragments"
	"github.com/hkhalifa/versemind/internal/search"
)

var (
	queryLimit  int
	queryRerank bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search ingested fragments from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		embedder, err := newEmbedder(cfg)
		if err != nil {
			return err
		}
		database, vectors, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		var reranker *search.Reranker
		if provider := newProvider(cfg); provider != nil {
			reranker = search.NewReranker(provider, cfg.RerankModel)
		}

		engine := search.NewEngine(fragments.NewStore(database), vectors, embedder, reranker, cfg)

		rerank := queryRerank
		resp, err := engine.Search(context.Background(), search.Request{
			Query:  strings.Join(args, " "),
			Limit:  queryLimit,
			Rerank: &rerank,
		})
		if err != nil {
			return err
		}

		if len(resp.Hits) == 0 {
			fmt.Println("No results.")
			return nil
		}

		for i, hit := range resp.Hits {
			score := hit.Score
			if resp.Reranked {
				score = hit.RerankScore
			}
			fmt.Printf("%2d. [%s] %s (%.4f)\n", i+1, hit.DocName, hit.Citation, score)
			if hit.Missing {
				fmt.Println("    (content unavailable)")
				continue
			}
			for _, line := range strings.Split(hit.Content, "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 10, "maximum number of results")
	queryCmd.Flags().BoolVar(&queryRerank, "rerank", false, "rerank results with the LLM judge")
	rootCmd.AddCommand(queryCmd)
}
