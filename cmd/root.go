package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "versemind",
	Short: "Hybrid retrieval over scripture and prose collections",
	Long: `Versemind ingests versed scripture and free-form prose into a
searchable fragment store. It combines full-text and semantic vector
retrieval with reciprocal rank fusion, and serves the result over a
REST API with live ingestion progress.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".versemind.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
