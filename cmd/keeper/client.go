package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

type appStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known apps and their state",
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Root().PersistentFlags().GetString("admin-addr")

		resp, err := http.Get(fmt.Sprintf("http://%s/apps", adminAddr))
		if err != nil {
			return fmt.Errorf("reach admin endpoint: %w", err)
		}
		defer resp.Body.Close()

		var apps []appStatus
		if err := json.NewDecoder(resp.Body).Decode(&apps); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		if len(apps) == 0 {
			fmt.Println("No apps found")
			return nil
		}
		fmt.Printf("%-30s %s\n", "NAME", "STATE")
		for _, a := range apps {
			fmt.Printf("%-30s %s\n", a.Name, a.State)
		}
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload NAME --bundle PATH",
	Short: "Reload a running app from a new bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Root().PersistentFlags().GetString("admin-addr")
		bundle, _ := cmd.Flags().GetString("bundle")
		if bundle == "" {
			return fmt.Errorf("--bundle is required")
		}

		u := fmt.Sprintf("http://%s/apps/%s/reload?bundle=%s", adminAddr, args[0], url.QueryEscape(bundle))
		return postAction(u, args[0])
	},
}

var terminateCmd = &cobra.Command{
	Use:   "terminate NAME",
	Short: "Terminate a running app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Root().PersistentFlags().GetString("admin-addr")
		u := fmt.Sprintf("http://%s/apps/%s/terminate", adminAddr, args[0])
		return postAction(u, args[0])
	},
}

func init() {
	reloadCmd.Flags().String("bundle", "", "Path to the replacement bundle archive (required)")
}

func postAction(url, app string) error {
	resp, err := http.Post(url, "application/octet-stream", nil)
	if err != nil {
		return fmt.Errorf("reach admin endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("admin endpoint rejected request for %s: %s", app, resp.Status)
	}
	fmt.Printf("✓ %s accepted\n", app)
	return nil
}
