package campaign

import (
	"errors"
	"fmt"
)

// ErrIncompatible is the sentinel wrapped by every gate refusal.
var ErrIncompatible = errors.New("campaign content incompatible with run")

// IncompatibleError explains why a run may not replay against the available
// content. Fatal for that replay attempt.
type IncompatibleError struct {
	RunID  string
	Reason string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("run %s: %s", e.RunID, e.Reason)
}

func (e *IncompatibleError) Unwrap() error { return ErrIncompatible }

// Run is the record of a saved playthrough. Replay must always use the exact
// content fingerprint recorded here, never the latest available version.
type Run struct {
	// RunID identifies the run.
	RunID string
	// CampaignID is the campaign this run plays.
	CampaignID string
	// CampaignVersionHash is the content fingerprint at time of first play.
	CampaignVersionHash string
	// EngineVersion is the engine the run was recorded under.
	EngineVersion string
	// StreamID references the run's ordered event stream.
	StreamID string
}

// Content is one compiled campaign content version as currently available.
type Content struct {
	CampaignID  string
	VersionHash string
	Manifest    Manifest
}

// Compatibility is the gate's verdict.
type Compatibility struct {
	Compatible bool
	Reason     string
}

// Compatible is the passing verdict.
func Compatible() Compatibility {
	return Compatibility{Compatible: true}
}

// Incompatible is a refusal with its reason.
func Incompatible(reason string) Compatibility {
	return Compatibility{Reason: reason}
}

// Gate decides whether a recorded run may replay against available content.
type Gate struct{}

// Check compares the run's recorded fingerprint against the available
// content. Exact match passes. On mismatch the content's manifest is
// consulted: an explicitly accepted hash passes, then an engine version
// inside the declared range. Everything else is Incompatible.
func (Gate) Check(run Run, available Content) Compatibility {
	if run.CampaignID == "" {
		return Incompatible("run has no campaign id")
	}
	if run.CampaignVersionHash == "" {
		return Incompatible("run has no recorded content fingerprint")
	}
	if run.CampaignID != available.CampaignID {
		return Incompatible(fmt.Sprintf("run plays campaign %s but content is for %s", run.CampaignID, available.CampaignID))
	}

	if run.CampaignVersionHash == available.VersionHash {
		return Compatible()
	}
	if available.Manifest.AcceptsHash(run.CampaignVersionHash) {
		return Compatible()
	}
	if available.Manifest.AcceptsEngine(run.EngineVersion) {
		return Compatible()
	}

	return Incompatible(fmt.Sprintf(
		"run recorded against content %s but %s is available, outside the declared compatibility range",
		run.CampaignVersionHash, available.VersionHash))
}
