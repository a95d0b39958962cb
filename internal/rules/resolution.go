package rules

import (
	"encoding/json"
	"fmt"

	"github.com/cebartling/otherworlds-rpg/internal/engine/command"
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/runtime"
)

// AggregateName is the runtime registration name for resolutions.
const AggregateName = "resolution"

// Phase is the position of a resolution in its fixed lifecycle.
type Phase string

const (
	PhaseCreated         Phase = "created"
	PhaseIntentDeclared  Phase = "intent_declared"
	PhaseCheckResolved   Phase = "check_resolved"
	PhaseEffectsProduced Phase = "effects_produced"
)

// Command types handled by the resolution aggregate.
const (
	CommandTypeDeclareIntent  = command.Type("rules.declare_intent")
	CommandTypeResolveCheck   = command.Type("rules.resolve_check")
	CommandTypeProduceEffects = command.Type("rules.produce_effects")
)

// Rejection codes.
const (
	RejectionActorRequired   = "rules_actor_required"
	RejectionInvalidDC       = "rules_invalid_dc"
	RejectionEffectsRequired = "rules_effects_required"
	RejectionWrongPhase      = "rules_wrong_phase"
)

// DeclareIntentPayload is the payload for rules.declare_intent.
type DeclareIntentPayload struct {
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

// ResolveCheckPayload is the payload for rules.resolve_check.
type ResolveCheckPayload struct {
	Modifier int `json:"modifier"`
	DC       int `json:"dc"`
}

// ProduceEffectsPayload is the payload for rules.produce_effects.
type ProduceEffectsPayload struct {
	Effects []Effect `json:"effects"`
}

// State is the folded resolution state.
type State struct {
	Phase   Phase
	Actor   string
	Action  string
	Target  string
	Outcome Outcome
}

// CloneState copies the state for the snapshot cache.
func (s State) CloneState() any {
	return s
}

// NewState returns a resolution in its created phase.
func NewState() State {
	return State{Phase: PhaseCreated}
}

func wrongPhase(have Phase, want Phase) command.Decision {
	return command.Reject(command.Rejection{
		Code:    RejectionWrongPhase,
		Message: fmt.Sprintf("resolution is in phase %s, command requires %s", have, want),
	})
}

// Fold applies one resolution event to the state.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case EventTypeIntentDeclared:
		var payload IntentDeclaredPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Phase = PhaseIntentDeclared
		state.Actor = payload.Actor
		state.Action = payload.Action
		state.Target = payload.Target
		return state, nil
	case EventTypeCheckResolved:
		var payload CheckResolvedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return State{}, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Phase = PhaseCheckResolved
		state.Outcome = payload.Outcome
		return state, nil
	case EventTypeEffectsProduced:
		state.Phase = PhaseEffectsProduced
		return state, nil
	default:
		return State{}, fmt.Errorf("rules fold: unhandled event type %s", evt.Type)
	}
}

func decideDeclareIntent(state State, cmd command.Command) command.Decision {
	var payload DeclareIntentPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.Actor == "" || payload.Action == "" {
		return command.Reject(command.Rejection{Code: RejectionActorRequired, Message: "an actor and action are required"})
	}
	if state.Phase != PhaseCreated {
		return wrongPhase(state.Phase, PhaseCreated)
	}

	out, _ := json.Marshal(IntentDeclaredPayload(payload))
	return command.Accept(event.Event{Type: EventTypeIntentDeclared, PayloadJSON: out})
}

func decideResolveCheck(state State, cmd command.Command, env runtime.Env) command.Decision {
	var payload ResolveCheckPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || payload.DC < 1 {
		return command.Reject(command.Rejection{Code: RejectionInvalidDC, Message: "a difficulty class of at least 1 is required"})
	}
	if state.Phase != PhaseIntentDeclared {
		return wrongPhase(state.Phase, PhaseIntentDeclared)
	}

	roll := env.Random.IntBetween(1, 20)
	out, _ := json.Marshal(CheckResolvedPayload{
		Roll:     roll,
		Modifier: payload.Modifier,
		Total:    roll + payload.Modifier,
		DC:       payload.DC,
		Outcome:  DetermineOutcome(roll, payload.Modifier, payload.DC),
	})
	return command.Accept(event.Event{Type: EventTypeCheckResolved, PayloadJSON: out})
}

func decideProduceEffects(state State, cmd command.Command) command.Decision {
	var payload ProduceEffectsPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil || len(payload.Effects) == 0 {
		return command.Reject(command.Rejection{Code: RejectionEffectsRequired, Message: "at least one effect is required"})
	}
	if state.Phase != PhaseCheckResolved {
		return wrongPhase(state.Phase, PhaseCheckResolved)
	}

	out, _ := json.Marshal(EffectsProducedPayload{Outcome: state.Outcome, Effects: payload.Effects})
	return command.Accept(event.Event{Type: EventTypeEffectsProduced, PayloadJSON: out})
}

// Register wires the resolution aggregate and its commands into the runtime.
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
			Type:      CommandTypeDeclareIntent,
			Aggregate: AggregateName,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideDeclareIntent(state.(State), cmd)
			},
		},
		{
			Type:            CommandTypeResolveCheck,
			Aggregate:       AggregateName,
			RequiresHistory: true,
			Decide: func(state any, cmd command.Command, env runtime.Env) command.Decision {
				return decideResolveCheck(state.(State), cmd, env)
			},
		},
		{
			Type:            CommandTypeProduceEffects,
			Aggregate:       AggregateName,
			RequiresHistory: true,
			Decide: func(state any, cmd command.Command, _ runtime.Env) command.Decision {
				return decideProduceEffects(state.(State), cmd)
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
