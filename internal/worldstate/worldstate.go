package worldstate

import (
	"encoding/json"
	"fmt"

	"github.com/cebartling/otherworlds-rpg/internal/engine/command"
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/runtime"
)

// AggregateName is the runtime registration name for world state.
const AggregateName = "worldstate"

// Command types handled by the worldstate aggregate.
const (
	CommandTypeRecordFact        = command.Type("worldstate.record_fact")
	CommandTypeSetFlag           = command.Type("worldstate.set_flag")
	CommandTypeAdjustDisposition = command.Type("worldstate.adjust_disposition")
)

// Rejection codes.
const (
	RejectionSubjectRequired = "worldstate_subject_required"
	RejectionFlagRequired    = "worldstate_flag_required"
	RejectionNPCRequired     = "worldstate_npc_required"
	RejectionFlagUnchanged   = "worldstate_flag_unchanged"
	RejectionZeroDelta       = "worldstate_zero_delta"
)

// RecordFactPayload is the payload for worldstate.record_fact.
type RecordFactPayload struct {
	Subject string `json:"subject"`
	Fact    string `json:"fact"`
}

// SetFlagPayload is the payload for worldstate.set_flag.
type SetFlagPayload struct {
	Flag  string `json:"flag"`
	Value bool   `json:"value"`
}

// AdjustDispositionPayload is the payload for worldstate.adjust_disposition.
type AdjustDispositionPayload struct {
	NPC   string `json:"npc"`
	Delta int    `json:"delta"`
}

// State is the folded world state.
type State struct {
	Facts        map[string]string
	Flags        map[string]bool
	Dispositions map[string]int
}

// CloneState copies the state so cached snapshots cannot alias live maps.
func (s State) CloneState() any {
	cloned := NewState()
	for k, v := range s.Facts {
		cloned.Facts[k] = v
	}
	for k, v := range s.Flags {
		cloned.Flags[k] = v
	}
	for k, v := range s.Dispositions {
		cloned.Dispositions[k] = v
	}
	return cloned
}

// NewState returns an empty world state with allocated maps.
func NewState() State {
	return State{
		Facts:        map[string]string{},
		Flags:        map[string]bool{},
		Dispositions: map[string]int{},
	}
}

// Fold applies one worldstate event to the state. The incoming state's maps
// are mutated in place; callers holding snapshots go through CloneState.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case EventTypeFactRecorded:
		var payload FactRecordedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Facts[payload.Subject] = payload.Fact
		return state, nil
	case EventTypeFlagSet:
		var payload FlagSetPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Flags[payload.Flag] = payload.Value
		return state, nil
	case EventTypeDispositionUpdated:
		var payload DispositionUpdatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Dispositions[payload.NPC] = payload.Disposition
		return state, nil
	default:
		return State{}, fmt.Errorf("worldstate fold: unhandled event type %s", evt.Type)
	}
}

func decideRecordFact(_ State, cmd command.Command) command.Decision {
	var payload RecordFactPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.Subject == "" || payload.Fact == "" {
		return command.Reject(command.Rejection{Code: RejectionSubjectRequired, Message: "a subject and fact are required"})
	}

	out, _ := json.Marshal(FactRecordedPayload(payload))
	return command.Accept(event.Event{Type: EventTypeFactRecorded, PayloadJSON: out})
}

func decideSetFlag(state State, cmd command.Command) command.Decision {
	var payload SetFlagPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.Flag == "" {
		return command.Reject(command.Rejection{Code: RejectionFlagRequired, Message: "a flag name is required"})
	}
	if current, ok := state.Flags[payload.Flag]; ok && current == payload.Value {
		return command.Reject(command.Rejection{
			Code:    RejectionFlagUnchanged,
			Message: fmt.Sprintf("flag %s is already %t", payload.Flag, payload.Value),
		})
	}

	out, _ := json.Marshal(FlagSetPayload(payload))
	return command.Accept(event.Event{Type: EventTypeFlagSet, PayloadJSON: out})
}

func decideAdjustDisposition(state State, cmd command.Command) command.Decision {
	var payload AdjustDispositionPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.NPC == "" {
		return command.Reject(command.Rejection{Code: RejectionNPCRequired, Message: "an npc name is required"})
	}
	if payload.Delta == 0 {
		return command.Reject(command.Rejection{Code: RejectionZeroDelta, Message: "a disposition adjustment must be non-zero"})
	}

	out, _ := json.Marshal(DispositionUpdatedPayload{
		NPC:         payload.NPC,
		Delta:       payload.Delta,
		Disposition: state.Dispositions[payload.NPC] + payload.Delta,
	})
	return command.Accept(event.Event{Type: EventTypeDispositionUpdated, PayloadJSON: out})
}

// Register wires the worldstate aggregate and its commands into the runtime.
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
			Type:      CommandTypeRecordFact,
			Aggregate: AggregateName,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideRecordFact(state.(State), cmd)
			},
		},
		{
			Type:      CommandTypeSetFlag,
			Aggregate: AggregateName,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideSetFlag(state.(State), cmd)
			},
		},
		{
			Type:      CommandTypeAdjustDisposition,
			Aggregate: AggregateName,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideAdjustDisposition(state.(State), cmd)
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
