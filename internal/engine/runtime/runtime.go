// Package runtime mediates every state change in the engine: it loads an
// aggregate's history, folds it into state, asks the aggregate's decider for
// a decision, stamps the resulting events, and appends them under the
// optimistic-concurrency precondition.
//
// Deciders are pure. Time and randomness reach them only through Env, so
// replaying a stream or re-running a decision with the same seams yields
// identical payloads and state. Identity values are the one exemption: they
// come from platform/id and must never feed decide or fold branching.
package runtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cebartling/otherworlds-rpg/internal/engine/clock"
	"github.com/cebartling/otherworlds-rpg/internal/engine/command"
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/random"
)

var (
	// ErrAggregateNotFound indicates a command that requires existing
	// history targeted an aggregate with none.
	ErrAggregateNotFound = errors.New("aggregate not found")
	// ErrUnknownCommand indicates a command type with no registered definition.
	ErrUnknownCommand = errors.New("unknown command type")
	// ErrStoreRequired indicates a missing event store.
	ErrStoreRequired = errors.New("event store is required")
	// ErrEventRegistryRequired indicates a missing event registry.
	ErrEventRegistryRequired = errors.New("event registry is required")
)

// Env carries the injected determinism seams deciders draw on. Any decision
// logic that needs the current time or a random number takes it from here,
// never from the ambient process.
type Env struct {
	Clock  clock.Clock
	Random random.Source
}

// DecideFunc produces a pure decision from folded state and a command.
type DecideFunc func(state any, cmd command.Command, env Env) command.Decision

// FoldFunc applies one event to state, returning the next state. An event
// type the aggregate does not understand is an error: history must never be
// silently skipped.
type FoldFunc func(state any, evt event.Event) (any, error)

// Aggregate describes one aggregate family the runtime can drive.
type Aggregate struct {
	// Name is the family name, e.g. "narrative".
	Name string
	// NewState returns the zero state history is folded into.
	NewState func() any
	// Fold applies one event to state.
	Fold FoldFunc
}

// CommandDefinition binds a command type to its aggregate and decider.
type CommandDefinition struct {
	Type command.Type
	// Aggregate names the registered aggregate family the command targets.
	Aggregate string
	// RequiresHistory marks commands that only make sense against an
	// aggregate that already exists; handling them against an empty stream
	// fails with ErrAggregateNotFound instead of deciding on zero state.
	RequiresHistory bool
	Decide          DecideFunc
}

// Registry holds the aggregates and commands the runtime knows about.
type Registry struct {
	mu         sync.RWMutex
	aggregates map[string]Aggregate
	commands   map[command.Type]CommandDefinition
}

// NewRegistry creates an empty runtime registry.
func NewRegistry() *Registry {
	return &Registry{
		aggregates: make(map[string]Aggregate),
		commands:   make(map[command.Type]CommandDefinition),
	}
}

// RegisterAggregate adds an aggregate family. Re-registering a name is a
// programming error.
func (r *Registry) RegisterAggregate(agg Aggregate) error {
	if agg.Name == "" {
		return fmt.Errorf("aggregate name is required")
	}
	if agg.NewState == nil {
		return fmt.Errorf("aggregate %s: NewState is required", agg.Name)
	}
	if agg.Fold == nil {
		return fmt.Errorf("aggregate %s: Fold is required", agg.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.aggregates[agg.Name]; exists {
		return fmt.Errorf("aggregate %s is already registered", agg.Name)
	}
	r.aggregates[agg.Name] = agg
	return nil
}

// RegisterCommand adds a command definition. The target aggregate must be
// registered first.
func (r *Registry) RegisterCommand(def CommandDefinition) error {
	if !def.Type.IsValid() {
		return fmt.Errorf("command type is required")
	}
	if def.Decide == nil {
		return fmt.Errorf("command %s: Decide is required", def.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.aggregates[def.Aggregate]; !ok {
		return fmt.Errorf("command %s: aggregate %s is not registered", def.Type, def.Aggregate)
	}
	if _, exists := r.commands[def.Type]; exists {
		return fmt.Errorf("command %s is already registered", def.Type)
	}
	r.commands[def.Type] = def
	return nil
}

// Aggregate returns the aggregate family by name.
func (r *Registry) Aggregate(name string) (Aggregate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agg, ok := r.aggregates[name]
	return agg, ok
}

// Command returns the definition for a command type.
func (r *Registry) Command(t command.Type) (CommandDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.commands[t]
	return def, ok
}
