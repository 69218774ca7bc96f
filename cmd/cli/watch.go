package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func postOrDelete(cmd *cobra.Command, method, path string) error {
	addr, _ := cmd.Flags().GetString("addr")
	req, err := http.NewRequest(method, addr+path, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("minactl: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("minactl: %s %s: status %d", method, path, resp.StatusCode)
	}
	return nil
}

// RegisterWatch wires the `watch`, `unwatch` and `watched` account
// commands onto root.
func RegisterWatch(root *cobra.Command) {
	watch := &cobra.Command{
		Use:   "watch <hex-address>",
		Short: "watch an account for balance/nonce changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := postOrDelete(cmd, http.MethodPost, "/watched/"+args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "watching", args[0])
			return nil
		},
	}

	unwatch := &cobra.Command{
		Use:   "unwatch <hex-address>",
		Short: "stop watching an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := postOrDelete(cmd, http.MethodDelete, "/watched/"+args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "unwatched", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "watched",
		Short: "list watched accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var v map[string]any
			if err := getJSON(cmd, "/watched", &v); err != nil {
				return err
			}
			printJSON(cmd, v)
			return nil
		},
	}

	root.AddCommand(watch, unwatch, list)
}
