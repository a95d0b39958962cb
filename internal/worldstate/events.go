// Package worldstate tracks the mutable facts of the game world: free-form
// facts keyed by subject, boolean flags, and NPC dispositions. The folded
// state is a pure function of the event stream, so two replays of the same
// stream always agree on what the world looks like.
package worldstate

import (
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
)

// Event types emitted by the worldstate aggregate.
const (
	EventTypeFactRecorded       = event.Type("worldstate.fact_recorded")
	EventTypeFlagSet            = event.Type("worldstate.flag_set")
	EventTypeDispositionUpdated = event.Type("worldstate.disposition_updated")
)

// FactRecordedPayload is the payload for worldstate.fact_recorded.
type FactRecordedPayload struct {
	// Subject keys the fact; recording the same subject twice replaces it.
	Subject string `json:"subject"`
	Fact    string `json:"fact"`
}

// FlagSetPayload is the payload for worldstate.flag_set.
type FlagSetPayload struct {
	Flag  string `json:"flag"`
	Value bool   `json:"value"`
}

// DispositionUpdatedPayload is the payload for worldstate.disposition_updated.
type DispositionUpdatedPayload struct {
	NPC string `json:"npc"`
	// Delta is applied to the current disposition; Disposition records the
	// resulting value so a reader never has to re-derive it.
	Delta       int `json:"delta"`
	Disposition int `json:"disposition"`
}

// RegisterEvents adds the worldstate event definitions to the registry.
func RegisterEvents(r *event.Registry) error {
	definitions := []event.Definition{
		{
			Type: EventTypeFactRecorded,
			Schema: `{
				"type": "object",
				"required": ["subject", "fact"],
				"properties": {
					"subject": {"type": "string", "minLength": 1},
					"fact": {"type": "string", "minLength": 1}
				}
			}`,
		},
		{
			Type: EventTypeFlagSet,
			Schema: `{
				"type": "object",
				"required": ["flag", "value"],
				"properties": {
					"flag": {"type": "string", "minLength": 1},
					"value": {"type": "boolean"}
				}
			}`,
		},
		{
			Type: EventTypeDispositionUpdated,
			Schema: `{
				"type": "object",
				"required": ["npc", "delta", "disposition"],
				"properties": {
					"npc": {"type": "string", "minLength": 1},
					"delta": {"type": "integer"},
					"disposition": {"type": "integer"}
				}
			}`,
		},
	}
	for _, def := range definitions {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
