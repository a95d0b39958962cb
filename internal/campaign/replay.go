package campaign

import (
	"context"

	"github.com/cebartling/otherworlds-rpg/internal/engine/replay"
)

// ReplayRun gates and then replays a saved run's event stream. An
// incompatible run returns *IncompatibleError before a single event is
// folded: the gate fails closed.
func ReplayRun(ctx context.Context, events replay.EventLister, cursors replay.CursorStore, applier replay.Applier, run Run, available Content, state any, options replay.Options) (replay.Result, error) {
	verdict := Gate{}.Check(run, available)
	if !verdict.Compatible {
		return replay.Result{}, &IncompatibleError{RunID: run.RunID, Reason: verdict.Reason}
	}

	streamID := run.StreamID
	if streamID == "" {
		streamID = run.RunID
	}
	replayer := replay.Replayer{Events: events, Cursors: cursors, Applier: applier}
	return replayer.Run(ctx, streamID, state, options)
}
