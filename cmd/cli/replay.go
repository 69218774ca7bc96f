package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mina-core/internal/action"
	"mina-core/internal/consensus"
	"mina-core/internal/frontier"
	"mina-core/internal/node"
	"mina-core/internal/p2p"
	"mina-core/internal/producer"
	"mina-core/internal/replay"
	"mina-core/internal/snarkpool"
	"mina-core/internal/snarkverify"
	"mina-core/internal/types"
	"mina-core/internal/watched"
)

func freshState() *node.State {
	genesis := types.BlockWithHash{}
	return &node.State{
		P2P:       p2p.NewReady(p2p.Config{MaxPeers: 50, ChurnInterval: time.Minute}),
		Snark:     snarkverify.NewState(),
		SnarkPool: snarkpool.NewState(),
		Frontier:  frontier.NewState(genesis),
		Consensus: consensus.NewState(genesis),
		Producer:  producer.NewState(),
		Watched:   watched.NewState(),
	}
}

// RegisterReplay wires the `replay run` command onto root: it plays a
// recorded action log back against a freshly built Store, printing one
// line per applied action, driven entirely by internal/replay rather than
// a live node.
func RegisterReplay(root *cobra.Command) {
	replayCmd := &cobra.Command{Use: "replay", Short: "replay a recorded action log"}

	run := &cobra.Command{
		Use:   "run <log-file>",
		Short: "replay every recorded action against a fresh state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := freshState()
			store := node.New(state, node.Services{})

			player, err := replay.OpenPlayer(args[0], state)
			if err != nil {
				return fmt.Errorf("minactl: %w", err)
			}
			defer player.Close()

			count := 0
			step := func(a action.Action, meta action.Meta) replay.Decision {
				count++
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] kind=%d depth=%d\n", count, meta.Kind, meta.Depth)
				return replay.Continue
			}
			if err := replay.Run(player, store.Dispatch, step); err != nil {
				return fmt.Errorf("minactl: replay: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d actions\n", count)
			return nil
		},
	}

	replayCmd.AddCommand(run)
	root.AddCommand(replayCmd)
}
