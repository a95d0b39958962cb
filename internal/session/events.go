// Package session manages campaign runs: starting a run pinned to a
// campaign content fingerprint, cutting named checkpoints, and branching a
// new timeline off an existing checkpoint. The pinned fingerprint is what
// the compatibility gate later checks replays against.
package session

import (
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
)

// Event types emitted by the run aggregate.
const (
	EventTypeRunStarted        = event.Type("session.campaign_run_started")
	EventTypeCheckpointCreated = event.Type("session.checkpoint_created")
	EventTypeTimelineBranched  = event.Type("session.timeline_branched")
)

// RunStartedPayload is the payload for session.campaign_run_started.
type RunStartedPayload struct {
	CampaignID          string `json:"campaign_id"`
	CampaignVersionHash string `json:"campaign_version_hash"`
	EngineVersion       string `json:"engine_version"`
	// ParentRunID is set when this run was branched off another run.
	ParentRunID string `json:"parent_run_id,omitempty"`
}

// CheckpointCreatedPayload is the payload for session.checkpoint_created.
type CheckpointCreatedPayload struct {
	CheckpointID string `json:"checkpoint_id"`
	Label        string `json:"label"`
}

// TimelineBranchedPayload is the payload for session.timeline_branched.
type TimelineBranchedPayload struct {
	CheckpointID string `json:"checkpoint_id"`
	BranchRunID  string `json:"branch_run_id"`
}

// RegisterEvents adds the session event definitions to the registry.
func RegisterEvents(r *event.Registry) error {
	definitions := []event.Definition{
		{
			Type: EventTypeRunStarted,
			Schema: `{
				"type": "object",
				"required": ["campaign_id", "campaign_version_hash", "engine_version"],
				"properties": {
					"campaign_id": {"type": "string", "minLength": 1},
					"campaign_version_hash": {"type": "string", "minLength": 1},
					"engine_version": {"type": "string", "minLength": 1},
					"parent_run_id": {"type": "string"}
				}
			}`,
		},
		{
			Type: EventTypeCheckpointCreated,
			Schema: `{
				"type": "object",
				"required": ["checkpoint_id", "label"],
				"properties": {
					"checkpoint_id": {"type": "string", "minLength": 1},
					"label": {"type": "string", "minLength": 1}
				}
			}`,
		},
		{
			Type: EventTypeTimelineBranched,
			Schema: `{
				"type": "object",
				"required": ["checkpoint_id", "branch_run_id"],
				"properties": {
					"checkpoint_id": {"type": "string", "minLength": 1},
					"branch_run_id": {"type": "string", "minLength": 1}
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
