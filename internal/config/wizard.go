package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .versemind.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to versemind! Let's configure your library.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Server port.
	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("must be a port number between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 2. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (database and vector index)",
		Default: cfg.DataDir,
	}
	if cfg.DataDir, err = dataPrompt.Run(); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	// 3. Embedding model.
	embedPrompt := promptui.Select{
		Label: "Embedding model",
		Items: []string{"text-embedding-3-small", "text-embedding-3-large"},
	}
	if _, cfg.EmbeddingModel, err = embedPrompt.Run(); err != nil {
		return nil, fmt.Errorf("embedding model: %w", err)
	}

	// 4. Rerank pass.
	rerankPrompt := promptui.Select{
		Label: "Enable LLM re-ranking of search results",
		Items: []string{"no (rank fusion only)", "yes (judge fused results with an LLM)"},
	}
	rerankIdx, _, err := rerankPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("rerank selection: %w", err)
	}
	cfg.Search.Rerank = rerankIdx == 1

	if os.Getenv(APIKeyEnvVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running versemind serve.\n", APIKeyEnvVar)
	}

	configPath := ".versemind.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}
