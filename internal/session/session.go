package session

import (
	"encoding/json"
	"fmt"

	"github.com/cebartling/otherworlds-rpg/internal/campaign"
	"github.com/cebartling/otherworlds-rpg/internal/engine/command"
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/runtime"
	"github.com/cebartling/otherworlds-rpg/internal/platform/id"
)

// AggregateName is the runtime registration name for campaign runs.
const AggregateName = "run"

// Command types handled by the run aggregate.
const (
	CommandTypeStartRun         = command.Type("session.start_run")
	CommandTypeCreateCheckpoint = command.Type("session.create_checkpoint")
	CommandTypeBranchTimeline   = command.Type("session.branch_timeline")
)

// Rejection codes.
const (
	RejectionRunAlreadyStarted = "session_run_already_started"
	RejectionCampaignRequired  = "session_campaign_required"
	RejectionLabelRequired     = "session_label_required"
	RejectionUnknownCheckpoint = "session_unknown_checkpoint"
)

// StartRunPayload is the payload for session.start_run.
type StartRunPayload struct {
	CampaignID          string `json:"campaign_id"`
	CampaignVersionHash string `json:"campaign_version_hash"`
	EngineVersion       string `json:"engine_version"`
	ParentRunID         string `json:"parent_run_id,omitempty"`
}

// CreateCheckpointPayload is the payload for session.create_checkpoint.
type CreateCheckpointPayload struct {
	Label string `json:"label"`
}

// BranchTimelinePayload is the payload for session.branch_timeline.
type BranchTimelinePayload struct {
	CheckpointID string `json:"checkpoint_id"`
}

// State is the folded run state.
type State struct {
	Started             bool
	CampaignID          string
	CampaignVersionHash string
	EngineVersion       string
	ParentRunID         string
	// CheckpointLabels maps checkpoint id to its label, in creation order
	// under Checkpoints.
	Checkpoints      []string
	CheckpointLabels map[string]string
	BranchRunIDs     []string
}

// CloneState copies the state so cached snapshots cannot alias live
// collections.
func (s State) CloneState() any {
	cloned := s
	cloned.Checkpoints = append([]string(nil), s.Checkpoints...)
	cloned.BranchRunIDs = append([]string(nil), s.BranchRunIDs...)
	cloned.CheckpointLabels = make(map[string]string, len(s.CheckpointLabels))
	for k, v := range s.CheckpointLabels {
		cloned.CheckpointLabels[k] = v
	}
	return cloned
}

// NewState returns the zero run state.
func NewState() State {
	return State{CheckpointLabels: map[string]string{}}
}

// CampaignRun shapes the folded state into the record the compatibility
// gate checks before a replay.
func (s State) CampaignRun(runID string) campaign.Run {
	return campaign.Run{
		RunID:               runID,
		CampaignID:          s.CampaignID,
		CampaignVersionHash: s.CampaignVersionHash,
		EngineVersion:       s.EngineVersion,
		StreamID:            runID,
	}
}

// Fold applies one session event to the run state.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case EventTypeRunStarted:
		var payload RunStartedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Started = true
		state.CampaignID = payload.CampaignID
		state.CampaignVersionHash = payload.CampaignVersionHash
		state.EngineVersion = payload.EngineVersion
		state.ParentRunID = payload.ParentRunID
		return state, nil
	case EventTypeCheckpointCreated:
		var payload CheckpointCreatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Checkpoints = append(state.Checkpoints, payload.CheckpointID)
		state.CheckpointLabels[payload.CheckpointID] = payload.Label
		return state, nil
	case EventTypeTimelineBranched:
		var payload TimelineBranchedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.BranchRunIDs = append(state.BranchRunIDs, payload.BranchRunID)
		return state, nil
	default:
		return State{}, fmt.Errorf("session fold: unhandled event type %s", evt.Type)
	}
}

func decideStartRun(state State, cmd command.Command) command.Decision {
	var payload StartRunPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil ||
		payload.CampaignID == "" || payload.CampaignVersionHash == "" || payload.EngineVersion == "" {
		return command.Reject(command.Rejection{
			Code:    RejectionCampaignRequired,
			Message: "a campaign id, content fingerprint, and engine version are required",
		})
	}
	if state.Started {
		return command.Reject(command.Rejection{
			Code:    RejectionRunAlreadyStarted,
			Message: fmt.Sprintf("run is already bound to campaign %s", state.CampaignID),
		})
	}

	out, _ := json.Marshal(RunStartedPayload(payload))
	return command.Accept(event.Event{Type: EventTypeRunStarted, PayloadJSON: out})
}

func decideCreateCheckpoint(_ State, cmd command.Command) command.Decision {
	var payload CreateCheckpointPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.Label == "" {
		return command.Reject(command.Rejection{Code: RejectionLabelRequired, Message: "a checkpoint label is required"})
	}

	out, _ := json.Marshal(CheckpointCreatedPayload{
		CheckpointID: id.MustNew("ckpt"),
		Label:        payload.Label,
	})
	return command.Accept(event.Event{Type: EventTypeCheckpointCreated, PayloadJSON: out})
}

func decideBranchTimeline(state State, cmd command.Command) command.Decision {
	var payload BranchTimelinePayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.CheckpointID == "" {
		return command.Reject(command.Rejection{Code: RejectionUnknownCheckpoint, Message: "a checkpoint id is required to branch"})
	}
	if _, ok := state.CheckpointLabels[payload.CheckpointID]; !ok {
		return command.Reject(command.Rejection{
			Code:    RejectionUnknownCheckpoint,
			Message: fmt.Sprintf("checkpoint %s does not exist on this run", payload.CheckpointID),
		})
	}

	out, _ := json.Marshal(TimelineBranchedPayload{
		CheckpointID: payload.CheckpointID,
		BranchRunID:  id.MustNew("run"),
	})
	return command.Accept(event.Event{Type: EventTypeTimelineBranched, PayloadJSON: out})
}

// Register wires the run aggregate and its commands into the runtime.
func Register(reg *runtime.Registry, events *event.Registry) error {
	if err := RegisterEvents(events); err != nil {
		return err
	}
	if err := reg.RegisterAggregate(runtime.Aggregate{
		Name:     AggregateName,
		NewState: func() any { return NewState() },
		Fold: func(state any, evt event.Event) (any, error) {
			return Fold(state.(State), evt)
		},
	}); err != nil {
		return err
	}

	commands := []runtime.CommandDefinition{
		{
			Type:      CommandTypeStartRun,
			Aggregate: AggregateName,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideStartRun(state.(State), cmd)
			},
		},
		{
			Type:            CommandTypeCreateCheckpoint,
			Aggregate:       AggregateName,
			RequiresHistory: true,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideCreateCheckpoint(state.(State), cmd)
			},
		},
		{
			Type:            CommandTypeBranchTimeline,
			Aggregate:       AggregateName,
			RequiresHistory: true,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideBranchTimeline(state.(State), cmd)
			},
		},
	}
	for _, def := range commands {
		if err := reg.RegisterCommand(def); err != nil {
			return err
		}
	}
	return nil
}
