package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/replay"
)

var (
	replayUntilSeq uint64
	replayVerbose  bool
)

func init() {
	replayCmd.Flags().Uint64Var(&replayUntilSeq, "until", 0, "stop after this sequence number (0 replays everything)")
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "print each event while folding")
	rootCmd.AddCommand(replayCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay <aggregate> <stream-id>",
	Short: "Fold a stream back into state and print the result",
	Long: `Replays a persisted stream through the aggregate's fold in sequence
order. The aggregate name selects the fold: narrative, worldstate,
resolution, or run.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		aggregateName, streamID := args[0], args[1]

		reg, events, err := registries()
		if err != nil {
			return err
		}
		agg, ok := reg.Aggregate(aggregateName)
		if !ok {
			return fmt.Errorf("unknown aggregate %q", aggregateName)
		}

		st, err := openJournal()
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer st.Close()

		applier := replay.ApplierFunc(func(state any, evt event.Event) (any, error) {
			upcast, err := events.Upcast(evt)
			if err != nil {
				return nil, err
			}
			if replayVerbose {
				fmt.Fprintf(cmd.OutOrStdout(), "%6d  %-40s %s\n", upcast.Seq, upcast.Type, upcast.EventID)
			}
			return agg.Fold(state, upcast)
		})

		replayer := replay.Replayer{Events: st, Applier: applier}
		result, err := replayer.Run(cmd.Context(), streamID, agg.NewState(), replay.Options{UntilSeq: replayUntilSeq})
		if err != nil {
			return fmt.Errorf("replay %s: %w", streamID, err)
		}

		rendered, err := json.MarshalIndent(result.State, "", "  ")
		if err != nil {
			return fmt.Errorf("render state: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\napplied %d events through seq %d\n", rendered, result.Applied, result.Position)
		return nil
	},
}
