package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored workflows",
	RunE:  runList,
}

var listJSON bool

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
}

func runList(cmd *cobra.Command, _ []string) error {
	rt, cleanup, err := buildRuntime()
	if err != nil {
		return err
	}
	defer cleanup()

	summaries, err := rt.engine.List(cmd.Context())
	if err != nil {
		return err
	}

	if listJSON {
		return outputJSON(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No workflows")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPHASES\tUPDATED\tPROMPT")
	for _, s := range summaries {
		prompt := s.Prompt
		if len(prompt) > 60 {
			prompt = prompt[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Status, s.Phases, s.UpdatedAt.Format("2006-01-02 15:04:05"), prompt)
	}
	return w.Flush()
}
