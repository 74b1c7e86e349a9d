package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/hkhalifa/versemind/internal/documents"
	"github.com/hkhalifa/versemind/internal/fragments"
	"github.com/hkhalifa/versemind/internal/pipeline"
	"github.com/hkhalifa/versemind/internal/progress"
)

var (
	ingestCategory string
	ingestQuiet    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [patterns...]",
	Short: "Ingest documents from local files",
	Long: `Ingests local files matching the given glob patterns (doublestar
syntax, e.g. 'texts/**/*.json') directly into the data directory,
without going through the API server.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := documents.Category(ingestCategory)
		if !category.Valid() {
			return fmt.Errorf("category must be %q or %q",
				documents.CategoryVersed, documents.CategoryFreeform)
		}

		var files []string
		for _, pattern := range args {
			matches, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			files = append(files, matches...)
		}
		if len(files) == 0 {
			return fmt.Errorf("no files match the given patterns")
		}

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

		docStore := documents.NewStore(database)
		fragStore := fragments.NewStore(database)
		pipe := pipeline.New(docStore, fragStore, vectors, embedder, cfg)

		var reporter progress.Reporter = progress.NewReporter()
		if ingestQuiet {
			reporter = progress.QuietReporter{}
		}
		reporter.Start(len(files))

		ctx := context.Background()
		var failed int
		for i, path := range files {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			reporter.Update(i, name)

			raw, err := os.ReadFile(path)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
				continue
			}

			doc, err := docStore.Create(ctx, documents.Document{
				Name:      name,
				Category:  category,
				Size:      int64(len(raw)),
				MediaType: mediaTypeFor(category),
			})
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "create %s: %v\n", name, err)
				continue
			}

			result, err := pipe.Run(ctx, doc, raw)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "ingest %s: %v\n", name, err)
				continue
			}
			reporter.Update(i+1, fmt.Sprintf("%s (%d fragments)", name, result.FragmentCount))
		}
		reporter.Finish()

		fmt.Printf("Ingested %d of %d files\n", len(files)-failed, len(files))
		if failed > 0 {
			return fmt.Errorf("%d files failed", failed)
		}
		return nil
	},
}

func mediaTypeFor(category documents.Category) string {
	if category == documents.CategoryVersed {
		return "application/json"
	}
	return "text/plain"
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCategory, "category", string(documents.CategoryFreeform),
		"document category (versed or freeform)")
	ingestCmd.Flags().BoolVar(&ingestQuiet, "quiet", false, "suppress progress output")
	rootCmd.AddCommand(ingestCmd)
}
