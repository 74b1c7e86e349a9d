package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hkhalifa/versemind/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize versemind configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure versemind and generates a .versemind.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
