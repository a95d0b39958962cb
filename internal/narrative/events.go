// Package narrative drives scene and beat progression for a play session.
// Beats are ordered by an index derived from state, so replaying the stream
// reproduces the same progression regardless of the identifiers stamped on
// the way in.
package narrative

import (
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
)

// Event types emitted by the narrative aggregate.
const (
	EventTypeSceneStarted    = event.Type("narrative.scene_started")
	EventTypeBeatAdvanced    = event.Type("narrative.beat_advanced")
	EventTypeChoicePresented = event.Type("narrative.choice_presented")
)

// SceneStartedPayload is the payload for narrative.scene_started.
type SceneStartedPayload struct {
	SceneID string `json:"scene_id"`
	Title   string `json:"title,omitempty"`
}

// BeatAdvancedPayload is the payload for narrative.beat_advanced.
type BeatAdvancedPayload struct {
	// BeatID is an addressing value only; progression derives from Index.
	BeatID string `json:"beat_id"`
	// Beat labels the narrative beat, e.g. "intro".
	Beat string `json:"beat"`
	// Index is the 1-based position of this beat in the session.
	Index int `json:"index"`
}

// ChoicePresentedPayload is the payload for narrative.choice_presented.
type ChoicePresentedPayload struct {
	ChoiceID string   `json:"choice_id"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
}

// RegisterEvents adds the narrative event definitions to the registry.
func RegisterEvents(r *event.Registry) error {
	definitions := []event.Definition{
		{
			Type: EventTypeSceneStarted,
			Schema: `{
				"type": "object",
				"required": ["scene_id"],
				"properties": {
					"scene_id": {"type": "string", "minLength": 1},
					"title": {"type": "string"}
				}
			}`,
		},
		{
			Type: EventTypeBeatAdvanced,
			Schema: `{
				"type": "object",
				"required": ["beat_id", "beat", "index"],
				"properties": {
					"beat_id": {"type": "string", "minLength": 1},
					"beat": {"type": "string", "minLength": 1},
					"index": {"type": "integer", "minimum": 1}
				}
			}`,
		},
		{
			Type: EventTypeChoicePresented,
			Schema: `{
				"type": "object",
				"required": ["choice_id", "prompt", "options"],
				"properties": {
					"choice_id": {"type": "string", "minLength": 1},
					"prompt": {"type": "string", "minLength": 1},
					"options": {"type": "array", "items": {"type": "string"}, "minItems": 2}
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
