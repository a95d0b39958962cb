package event

import (
	"encoding/json"
	"strings"
	"testing"
)

const beatSchema = `{
	"type": "object",
	"required": ["beat"],
	"properties": {
		"beat": {"type": "string", "minLength": 1},
		"beat_id": {"type": "string"}
	}
}`

func TestRegisterRejectsDuplicateType(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Definition{Type: "narrative.beat_advanced"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(Definition{Type: "narrative.beat_advanced"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegisterRejectsInvalidSchema(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Definition{Type: "bad.schema", Schema: `{"type": 12}`})
	if err == nil {
		t.Fatal("expected invalid schema to fail registration")
	}
}

func TestValidateForAppend_UnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.ValidateForAppend(Event{Type: "ghost.event"})
	if err == nil {
		t.Fatal("expected unknown type to fail")
	}
	if !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateForAppend_SchemaViolation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Definition{Type: "narrative.beat_advanced", Schema: beatSchema}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.ValidateForAppend(Event{
		Type:        "narrative.beat_advanced",
		PayloadJSON: []byte(`{"beat": ""}`),
	})
	if err == nil {
		t.Fatal("expected schema violation")
	}

	evt, err := r.ValidateForAppend(Event{
		Type:        "narrative.beat_advanced",
		PayloadJSON: []byte(`{"beat": "intro"}`),
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if evt.PayloadVersion != 1 {
		t.Fatalf("expected payload version 1, got %d", evt.PayloadVersion)
	}
}

func TestValidateForAppend_DefaultsEmptyPayload(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Definition{Type: "session.run_started"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	evt, err := r.ValidateForAppend(Event{Type: "session.run_started"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if string(evt.PayloadJSON) != `{}` {
		t.Fatalf("expected empty-object payload, got %s", evt.PayloadJSON)
	}
}

func TestUpcastChainsToCurrentVersion(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Definition{
		Type:           "narrative.beat_advanced",
		CurrentVersion: 2,
		Upcasters: map[int]Upcaster{
			1: func(payload []byte) ([]byte, error) {
				// v1 carried only the beat name; v2 adds an explicit beat_id.
				var v1 struct {
					Beat string `json:"beat"`
				}
				if err := json.Unmarshal(payload, &v1); err != nil {
					return nil, err
				}
				return json.Marshal(map[string]string{"beat": v1.Beat, "beat_id": ""})
			},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	lifted, err := r.Upcast(Event{
		Type:           "narrative.beat_advanced",
		PayloadVersion: 1,
		PayloadJSON:    []byte(`{"beat": "intro"}`),
	})
	if err != nil {
		t.Fatalf("upcast: %v", err)
	}
	if lifted.PayloadVersion != 2 {
		t.Fatalf("expected version 2, got %d", lifted.PayloadVersion)
	}
	var payload map[string]string
	if err := json.Unmarshal(lifted.PayloadJSON, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["beat"] != "intro" {
		t.Fatalf("expected beat preserved, got %q", payload["beat"])
	}
	if _, ok := payload["beat_id"]; !ok {
		t.Fatal("expected beat_id added by upcast")
	}
}

func TestUpcastMissingUpcaster(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Definition{Type: "rules.check_resolved", CurrentVersion: 3}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := r.Upcast(Event{Type: "rules.check_resolved", PayloadVersion: 1, PayloadJSON: []byte(`{}`)})
	if err == nil {
		t.Fatal("expected missing upcaster to fail")
	}
}

func TestUpcastNewerThanCurrent(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Definition{Type: "rules.check_resolved"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := r.Upcast(Event{Type: "rules.check_resolved", PayloadVersion: 5, PayloadJSON: []byte(`{}`)})
	if err == nil {
		t.Fatal("expected newer-than-current payload version to fail")
	}
}

func TestTypeContext(t *testing.T) {
	if got := Type("narrative.beat_advanced").Context(); got != "narrative" {
		t.Fatalf("expected narrative, got %q", got)
	}
	if got := Type("bare").Context(); got != "bare" {
		t.Fatalf("expected bare, got %q", got)
	}
}
