package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func httpClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func getJSON(cmd *cobra.Command, path string, out any) error {
	addr, _ := cmd.Flags().GetString("addr")
	resp, err := httpClient().Get(addr + path)
	if err != nil {
		return fmt.Errorf("minactl: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("minactl: GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// RegisterState wires the `state`, `peers`, `sync` and `producer`
// read-only commands onto root.
func RegisterState(root *cobra.Command) {
	state := &cobra.Command{
		Use:   "state",
		Short: "print the node's coarse state snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			var v map[string]any
			if err := getJSON(cmd, "/state", &v); err != nil {
				return err
			}
			printJSON(cmd, v)
			return nil
		},
	}

	peers := &cobra.Command{
		Use:   "peers",
		Short: "list the node's ready peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var v []string
			if err := getJSON(cmd, "/peers", &v); err != nil {
				return err
			}
			printJSON(cmd, v)
			return nil
		},
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "print transition-frontier sync stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			var v map[string]any
			if err := getJSON(cmd, "/sync/stats", &v); err != nil {
				return err
			}
			printJSON(cmd, v)
			return nil
		},
	}

	producer := &cobra.Command{
		Use:   "producer",
		Short: "print block-producer stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			var v map[string]any
			if err := getJSON(cmd, "/producer/stats", &v); err != nil {
				return err
			}
			printJSON(cmd, v)
			return nil
		},
	}

	root.AddCommand(state, peers, sync, producer)
}
