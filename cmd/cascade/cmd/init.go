package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .cascade.yaml",
	RunE:  runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(_ *cobra.Command, _ []string) error {
	path := ".cascade.yaml"
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.AtomicWrite(path, []byte(config.DefaultConfigYAML)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Set provider API keys via CASCADE_PROVIDERS_ANTHROPIC_API_KEY / CASCADE_PROVIDERS_OPENAI_API_KEY.")
	return nil
}
