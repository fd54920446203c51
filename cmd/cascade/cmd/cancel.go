package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <workflow-id>",
	Short: "Cancel a running workflow",
	Long: `Cancel asks the cascade server (see 'cascade serve') to stop a
workflow cooperatively: no new phases start, in-flight provider calls
settle, and the workflow ends in the cancelled state.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

var cancelAddr string

func init() {
	rootCmd.AddCommand(cancelCmd)
	cancelCmd.Flags().StringVar(&cancelAddr, "addr", "", "server address (default: server.addr from config)")
}

func runCancel(cmd *cobra.Command, args []string) error {
	addr := cancelAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Server.Addr
	}

	url := fmt.Sprintf("http://%s/api/v1/workflows/%s/cancel", addr, args[0])
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reaching cascade server at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusAccepted {
		var payload map[string]string
		if json.Unmarshal(body, &payload) == nil && payload["error"] != "" {
			return fmt.Errorf("cancelling workflow: %s", payload["error"])
		}
		return fmt.Errorf("cancelling workflow: server returned %d", resp.StatusCode)
	}

	fmt.Printf("Cancellation requested for %s\n", args[0])
	return nil
}
