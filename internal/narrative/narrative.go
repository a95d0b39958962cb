package narrative

import (
	"encoding/json"
	"fmt"

	"github.com/cebartling/otherworlds-rpg/internal/engine/command"
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/runtime"
	"github.com/cebartling/otherworlds-rpg/internal/platform/id"
)

// AggregateName is the runtime registration name for narrative sessions.
const AggregateName = "narrative"

// Command types handled by the narrative aggregate.
const (
	CommandTypeStartScene    = command.Type("narrative.start_scene")
	CommandTypeAdvanceBeat   = command.Type("narrative.advance_beat")
	CommandTypePresentChoice = command.Type("narrative.present_choice")
)

// Rejection codes.
const (
	RejectionSceneAlreadyStarted = "narrative_scene_already_started"
	RejectionBeatLabelRequired   = "narrative_beat_label_required"
	RejectionSceneIDRequired     = "narrative_scene_id_required"
	RejectionPromptRequired      = "narrative_prompt_required"
	RejectionOptionsRequired     = "narrative_choice_requires_options"
)

// StartScenePayload is the payload for narrative.start_scene.
type StartScenePayload struct {
	SceneID string `json:"scene_id"`
	Title   string `json:"title,omitempty"`
}

// AdvanceBeatPayload is the payload for narrative.advance_beat.
type AdvanceBeatPayload struct {
	Beat string `json:"beat"`
}

// PresentChoicePayload is the payload for narrative.present_choice.
type PresentChoicePayload struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// State is the folded narrative session state.
type State struct {
	Started     bool
	SceneID     string
	CurrentBeat string
	BeatIndex   int
	ChoiceIDs   []string
}

// CloneState copies the state so cached snapshots cannot alias live slices.
func (s State) CloneState() any {
	cloned := s
	cloned.ChoiceIDs = append([]string(nil), s.ChoiceIDs...)
	return cloned
}

// NewState returns the zero session state.
func NewState() State {
	return State{}
}

// Fold applies one narrative event to the session state.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case EventTypeSceneStarted:
		var payload SceneStartedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Started = true
		state.SceneID = payload.SceneID
		return state, nil
	case EventTypeBeatAdvanced:
		var payload BeatAdvancedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.CurrentBeat = payload.Beat
		state.BeatIndex = payload.Index
		return state, nil
	case EventTypeChoicePresented:
		var payload ChoicePresentedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.ChoiceIDs = append(state.ChoiceIDs, payload.ChoiceID)
		return state, nil
	default:
		return State{}, fmt.Errorf("narrative fold: unhandled event type %s", evt.Type)
	}
}

func decideStartScene(state State, cmd command.Command) command.Decision {
	var payload StartScenePayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.SceneID == "" {
		return command.Reject(command.Rejection{Code: RejectionSceneIDRequired, Message: "a scene id is required to start a scene"})
	}
	if state.Started {
		return command.Reject(command.Rejection{Code: RejectionSceneAlreadyStarted, Message: fmt.Sprintf("scene %s has already started", state.SceneID)})
	}

	out, _ := json.Marshal(SceneStartedPayload{SceneID: payload.SceneID, Title: payload.Title})
	return command.Accept(event.Event{Type: EventTypeSceneStarted, PayloadJSON: out})
}

func decideAdvanceBeat(state State, cmd command.Command) command.Decision {
	var payload AdvanceBeatPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.Beat == "" {
		return command.Reject(command.Rejection{Code: RejectionBeatLabelRequired, Message: "a beat label is required"})
	}

	out, _ := json.Marshal(BeatAdvancedPayload{
		BeatID: id.MustNew("beat"),
		Beat:   payload.Beat,
		Index:  state.BeatIndex + 1,
	})
	return command.Accept(event.Event{Type: EventTypeBeatAdvanced, PayloadJSON: out})
}

func decidePresentChoice(state State, cmd command.Command) command.Decision {
	var payload PresentChoicePayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.Prompt == "" {
		return command.Reject(command.Rejection{Code: RejectionPromptRequired, Message: "a prompt is required to present a choice"})
	}
	if len(payload.Options) < 2 {
		return command.Reject(command.Rejection{Code: RejectionOptionsRequired, Message: "a choice needs at least two options"})
	}

	out, _ := json.Marshal(ChoicePresentedPayload{
		ChoiceID: id.MustNew("choice"),
		Prompt:   payload.Prompt,
		Options:  payload.Options,
	})
	return command.Accept(event.Event{Type: EventTypeChoicePresented, PayloadJSON: out})
}

// Register wires the narrative aggregate and its commands into the runtime.
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
			Type:      CommandTypeStartScene,
			Aggregate: AggregateName,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideStartScene(state.(State), cmd)
			},
		},
		{
			Type:      CommandTypeAdvanceBeat,
			Aggregate: AggregateName,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideAdvanceBeat(state.(State), cmd)
			},
		},
		{
			Type:            CommandTypePresentChoice,
			Aggregate:       AggregateName,
			RequiresHistory: true,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decidePresentChoice(state.(State), cmd)
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
