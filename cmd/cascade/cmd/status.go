package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/config"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/providers"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Show workflow status",
	Long: `Display the stored state of a workflow: phase progress, task attempt
history, and evidence. --providers probes the configured completion
backends instead.`,
	RunE: runStatus,
}

var (
	statusJSON      bool
	statusExport    string
	statusProviders bool
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	statusCmd.Flags().StringVar(&statusExport, "export", "", "Write evidence JSON to file")
	statusCmd.Flags().BoolVar(&statusProviders, "providers", false, "Probe provider health instead")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusProviders {
		return probeProviders(cmd.Context())
	}
	if len(args) != 1 {
		return fmt.Errorf("workflow ID required (or use --providers)")
	}

	rt, cleanup, err := buildRuntime()
	if err != nil {
		return err
	}
	defer cleanup()

	wf, err := rt.engine.GetStatus(cmd.Context(), core.WorkflowID(args[0]))
	if err != nil {
		return err
	}

	if statusExport != "" {
		if err := exportEvidence(wf, statusExport); err != nil {
			return err
		}
		fmt.Printf("Evidence written to %s\n", statusExport)
	}

	if statusJSON {
		return outputJSON(wf)
	}

	fmt.Printf("Workflow: %s\n", wf.ID)
	fmt.Printf("Status:   %s\n", wf.Status)
	if wf.Error != "" {
		fmt.Printf("Error:    %s\n", wf.Error)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tMODE\tSTATUS\tTASKS\tDURATION")
	for _, p := range wf.Phases {
		done := 0
		for _, t := range p.Tasks {
			if t.Status == core.TaskStatusSucceeded {
				done++
			}
		}
		fmt.Fprintf(w, "%d %s\t%s\t%s\t%d/%d\t%s\n",
			p.Index, p.Name, p.Mode, p.Status, done, len(p.Tasks),
			p.Duration().Round(time.Millisecond))
	}
	return w.Flush()
}

// exportEvidence writes the workflow result and evidence atomically.
func exportEvidence(wf *core.WorkflowExecution, path string) error {
	data, err := json.MarshalIndent(wf.BuildResult(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling evidence: %w", err)
	}
	return config.AtomicWrite(path, data)
}

// probeProviders health-checks every configured provider directly.
func probeProviders(ctx context.Context) error {
	rt, cleanup, err := buildRuntime()
	if err != nil {
		return err
	}
	defer cleanup()

	registry, err := providers.BuildRegistry(registryConfig(rt.cfg), rt.logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tREACHABLE")
	for _, name := range providers.Names(registry) {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		ok := registry[name].HealthCheck(probeCtx)
		cancel()
		fmt.Fprintf(w, "%s\t%v\n", name, ok)
	}
	return w.Flush()
}
