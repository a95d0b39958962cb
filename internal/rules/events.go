package rules

import (
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
)

// Event types emitted by the resolution aggregate.
const (
	EventTypeIntentDeclared  = event.Type("rules.intent_declared")
	EventTypeCheckResolved   = event.Type("rules.check_resolved")
	EventTypeEffectsProduced = event.Type("rules.effects_produced")
)

// IntentDeclaredPayload is the payload for rules.intent_declared.
type IntentDeclaredPayload struct {
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

// CheckResolvedPayload is the payload for rules.check_resolved. Roll is the
// raw die face; Total folds in the modifier so the outcome can be audited
// without re-rolling.
type CheckResolvedPayload struct {
	Roll     int     `json:"roll"`
	Modifier int     `json:"modifier"`
	Total    int     `json:"total"`
	DC       int     `json:"dc"`
	Outcome  Outcome `json:"outcome"`
}

// Effect is a single concrete consequence of a resolved check.
type Effect struct {
	Kind      string `json:"kind"`
	Target    string `json:"target"`
	Magnitude int    `json:"magnitude,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// EffectsProducedPayload is the payload for rules.effects_produced.
type EffectsProducedPayload struct {
	Outcome Outcome  `json:"outcome"`
	Effects []Effect `json:"effects"`
}

// RegisterEvents adds the resolution event definitions to the registry.
func RegisterEvents(r *event.Registry) error {
	definitions := []event.Definition{
		{
			Type: EventTypeIntentDeclared,
			Schema: `{
				"type": "object",
				"required": ["actor", "action"],
				"properties": {
					"actor": {"type": "string", "minLength": 1},
					"action": {"type": "string", "minLength": 1},
					"target": {"type": "string"}
				}
			}`,
		},
		{
			Type: EventTypeCheckResolved,
			Schema: `{
				"type": "object",
				"required": ["roll", "modifier", "total", "dc", "outcome"],
				"properties": {
					"roll": {"type": "integer", "minimum": 1, "maximum": 20},
					"modifier": {"type": "integer"},
					"total": {"type": "integer"},
					"dc": {"type": "integer", "minimum": 1},
					"outcome": {"type": "string", "enum": [
						"critical_success", "success", "partial_success",
						"failure", "critical_failure"
					]}
				}
			}`,
		},
		{
			Type: EventTypeEffectsProduced,
			Schema: `{
				"type": "object",
				"required": ["outcome", "effects"],
				"properties": {
					"outcome": {"type": "string"},
					"effects": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["kind", "target"],
							"properties": {
								"kind": {"type": "string", "minLength": 1},
								"target": {"type": "string", "minLength": 1},
								"magnitude": {"type": "integer"},
								"detail": {"type": "string"}
							}
						}
					}
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
