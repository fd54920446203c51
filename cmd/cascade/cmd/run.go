package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a workflow to completion",
	Long: `Run submits a prompt through the phase graph and waits for the
terminal result. Use --template to supply a custom YAML phase graph.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runTemplate string
	runJSON     bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runTemplate, "template", "", "YAML workflow template file")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	rt, cleanup, err := buildRuntime()
	if err != nil {
		return err
	}
	defer cleanup()

	tpl, err := loadTemplate(runTemplate)
	if err != nil {
		return err
	}

	result, err := rt.engine.Execute(cmd.Context(), prompt, tpl.Materialize(prompt))
	if err != nil {
		return err
	}

	if runJSON {
		return outputJSON(result)
	}

	fmt.Printf("Workflow: %s\n", result.WorkflowID)
	fmt.Printf("Status:   %s\n", result.Status)
	fmt.Printf("Elapsed:  %s\n", result.Elapsed.Round(time.Millisecond))
	fmt.Printf("Phases:   %d completed, %d failed, %d skipped\n",
		len(result.CompletedPhases), len(result.FailedPhases), len(result.SkippedPhases))

	if !result.Success {
		return core.ErrState(core.CodeInvalidState,
			fmt.Sprintf("workflow %s finished %s", result.WorkflowID, result.Status))
	}
	return nil
}
