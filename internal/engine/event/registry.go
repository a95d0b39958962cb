package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Upcaster rewrites a payload from one schema version to the next. The input
// is the older payload; the output must conform to the next version's shape.
type Upcaster func(payload []byte) ([]byte, error)

// Definition describes one event type the runtime understands.
type Definition struct {
	// Type is the event type this definition covers.
	Type Type
	// CurrentVersion is the payload schema version new events are written at.
	// Zero means the type is unversioned (treated as version 1).
	CurrentVersion int
	// Schema optionally holds a JSON Schema for the current payload shape.
	// When set, ValidateForAppend validates payloads against it.
	Schema string
	// Upcasters maps an older payload version to the rewrite that lifts it
	// one version; Upcast chains them until CurrentVersion is reached.
	Upcasters map[int]Upcaster

	compiled *jsonschema.Schema
}

// Registry validates events against registered definitions and upcasts
// persisted payloads to their current shape before fold functions see them.
type Registry struct {
	mu          sync.RWMutex
	definitions map[Type]Definition
}

// NewRegistry creates an empty event registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a definition. Re-registering a type is a programming error.
func (r *Registry) Register(def Definition) error {
	if !def.Type.IsValid() {
		return fmt.Errorf("event type is required")
	}
	if def.CurrentVersion < 0 {
		return fmt.Errorf("event type %s: current version must not be negative", def.Type)
	}
	if def.CurrentVersion == 0 {
		def.CurrentVersion = 1
	}
	if def.Schema != "" {
		compiled, err := jsonschema.CompileString(string(def.Type)+".json", def.Schema)
		if err != nil {
			return fmt.Errorf("event type %s: compile schema: %w", def.Type, err)
		}
		def.compiled = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("event type %s is already registered", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// Definition returns the definition for a type.
func (r *Registry) Definition(t Type) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[t]
	return def, ok
}

// Types returns all registered event types in sorted order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ValidateForAppend checks a freshly decided event before persistence and
// returns it with its payload version stamped to the current schema version.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	def, ok := r.Definition(evt.Type)
	if !ok {
		return Event{}, fmt.Errorf("event type %s is not registered", evt.Type)
	}
	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte(`{}`)
	}

	var decoded any
	if err := json.Unmarshal(evt.PayloadJSON, &decoded); err != nil {
		return Event{}, fmt.Errorf("event type %s: payload is not valid JSON: %w", evt.Type, err)
	}
	if def.compiled != nil {
		if err := def.compiled.Validate(decoded); err != nil {
			return Event{}, fmt.Errorf("event type %s: payload schema: %w", evt.Type, err)
		}
	}

	evt.PayloadVersion = def.CurrentVersion
	return evt, nil
}

// Upcast lifts a persisted event's payload to the current schema version.
// Events already at the current version pass through unchanged. A missing
// upcaster for an intermediate version is an error: the history must always
// be liftable to the shape fold functions expect.
func (r *Registry) Upcast(evt Event) (Event, error) {
	def, ok := r.Definition(evt.Type)
	if !ok {
		return Event{}, fmt.Errorf("event type %s is not registered", evt.Type)
	}

	version := evt.PayloadVersion
	if version == 0 {
		version = 1
	}
	if version > def.CurrentVersion {
		return Event{}, fmt.Errorf("event type %s: payload version %d is newer than current %d", evt.Type, version, def.CurrentVersion)
	}
	for version < def.CurrentVersion {
		up, ok := def.Upcasters[version]
		if !ok {
			return Event{}, fmt.Errorf("event type %s: no upcaster from version %d", evt.Type, version)
		}
		payload, err := up(evt.PayloadJSON)
		if err != nil {
			return Event{}, fmt.Errorf("event type %s: upcast from version %d: %w", evt.Type, version, err)
		}
		evt.PayloadJSON = payload
		version++
	}
	evt.PayloadVersion = version
	return evt, nil
}
