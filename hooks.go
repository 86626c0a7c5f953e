package hyperstream

import (
	"context"
	"slices"
	"sync"

	"github.com/hyp3rd/ewrap"
)

// EventKind identifies a lifecycle event of a plugin context.
type EventKind uint8

const (
	// EventConnectionOpened fires after an input connection initialized successfully.
	EventConnectionOpened EventKind = iota + 1
	// EventConnectionClosed fires when an input connection closes.
	EventConnectionClosed
	// EventSinkRejected fires when a downstream connection refused a record or the schema.
	EventSinkRejected
	// EventAnchorClosed fires when an output anchor closed its downstream connections.
	EventAnchorClosed
	// EventCompleted fires once, at the end of the completion cascade.
	EventCompleted
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventConnectionOpened:
		return "connection_opened"
	case EventConnectionClosed:
		return "connection_closed"
	case EventSinkRejected:
		return "sink_rejected"
	case EventAnchorClosed:
		return "anchor_closed"
	case EventCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

func allEventKinds() []EventKind {
	return []EventKind{
		EventConnectionOpened,
		EventConnectionClosed,
		EventSinkRejected,
		EventAnchorClosed,
		EventCompleted,
	}
}

// Event describes something that happened inside a plugin context.
type Event struct {
	Kind EventKind
	// ToolID is the id of the plugin context.
	ToolID int
	// Anchor is the input or output anchor involved, if any.
	Anchor string
	// ConnectionID identifies the input connection, if any.
	ConnectionID string
	// Sink names the downstream connection, if any.
	Sink string
	// Records is the record count relevant to the event.
	Records uint64
}

// Hook observes lifecycle events. Hooks run synchronously with no plugin context lock held.
type Hook interface {
	// OnEvent is called for every event of the kinds returned by Kinds.
	OnEvent(ctx context.Context, event *Event) error
	// Kinds returns the event kinds this hook should be triggered for.
	Kinds() []EventKind
}

// HookFunc is a function observing lifecycle events. Hook functions run synchronously on the
// goroutine that produced the event with no lock held. They may read the plugin context, such
// as its metrics, but must not write records or close connections.
type HookFunc func(ctx context.Context, event *Event) error

// hooks maintains a registry of hook functions for each event kind.
//
//nolint:gochecknoglobals
var hooks = struct {
	sync.RWMutex

	funcs map[EventKind][]HookFunc
}{
	funcs: make(map[EventKind][]HookFunc),
}

// RegisterHook adds a hook function for the specified event kind.
// Hooks registered for a kind run in registration order.
// An unknown kind registers the hook for every kind.
func RegisterHook(kind EventKind, hookFunc HookFunc) {
	if hookFunc == nil {
		return
	}

	hooks.Lock()
	defer hooks.Unlock()

	kinds := []EventKind{kind}
	if !slices.Contains(allEventKinds(), kind) {
		kinds = allEventKinds()
	}

	for _, k := range kinds {
		hooks.funcs[k] = append(hooks.funcs[k], hookFunc)
	}
}

// RegisterGlobalHook adds a hook function for all event kinds.
func RegisterGlobalHook(hookFunc HookFunc) {
	for _, kind := range allEventKinds() {
		RegisterHook(kind, hookFunc)
	}
}

// UnregisterHooks removes all global hooks for the specified kind.
func UnregisterHooks(kind EventKind) {
	hooks.Lock()
	defer hooks.Unlock()

	delete(hooks.funcs, kind)
}

// UnregisterAllHooks removes all global hooks.
func UnregisterAllHooks() {
	hooks.Lock()
	defer hooks.Unlock()

	hooks.funcs = make(map[EventKind][]HookFunc)
}

// FireGlobalHooks runs the global hooks registered for the event's kind and returns their errors.
func FireGlobalHooks(ctx context.Context, event *Event) []error {
	hooks.RLock()
	funcs := slices.Clone(hooks.funcs[event.Kind])
	hooks.RUnlock()

	var errs []error

	for _, fn := range funcs {
		err := fn(ctx, event)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// HookRegistry manages a collection of named hooks and provides thread-safe access to them.
type HookRegistry struct {
	mu sync.RWMutex

	Hooks map[string]Hook
}

// NewHookRegistry creates a new hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		Hooks: make(map[string]Hook),
	}
}

// AddHook adds a named hook to the registry.
func (r *HookRegistry) AddHook(name string, hook Hook) error {
	if hook == nil {
		return ewrap.New("hook cannot be nil").WithMetadata("name", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.Hooks[name]; exists {
		return ewrap.New("hook already exists").WithMetadata("name", name)
	}

	r.Hooks[name] = hook

	return nil
}

// RemoveHook removes a hook by name.
func (r *HookRegistry) RemoveHook(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.Hooks[name]; !exists {
		return false
	}

	delete(r.Hooks, name)

	return true
}

// GetHook retrieves a hook by name.
func (r *HookRegistry) GetHook(name string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hook, exists := r.Hooks[name]

	return hook, exists
}

// GetHooksForKind returns all hooks that should trigger for a given kind.
func (r *HookRegistry) GetHooksForKind(kind EventKind) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Hook

	for _, hook := range r.Hooks {
		if slices.Contains(hook.Kinds(), kind) {
			result = append(result, hook)
		}
	}

	return result
}

// FireHooks triggers the registry's hooks and then the global hooks for the event.
// It returns any errors encountered during hook execution.
func (r *HookRegistry) FireHooks(ctx context.Context, event *Event) []error {
	var errs []error

	for _, hook := range r.GetHooksForKind(event.Kind) {
		err := hook.OnEvent(ctx, event)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return append(errs, FireGlobalHooks(ctx, event)...)
}

// StandardHook provides a simpler way to implement the Hook interface.
type StandardHook struct {
	// KindList contains the kinds this hook should trigger for.
	KindList []EventKind
	// Handler is called when an event is fired.
	Handler HookFunc
}

// NewStandardHook creates a new StandardHook with the given kinds and handler.
func NewStandardHook(kinds []EventKind, handler HookFunc) *StandardHook {
	return &StandardHook{
		KindList: kinds,
		Handler:  handler,
	}
}

// OnEvent implements Hook.OnEvent.
func (h *StandardHook) OnEvent(ctx context.Context, event *Event) error {
	if h.Handler != nil {
		return h.Handler(ctx, event)
	}

	return nil
}

// Kinds implements Hook.Kinds. An empty KindList matches every kind.
func (h *StandardHook) Kinds() []EventKind {
	if len(h.KindList) == 0 {
		return allEventKinds()
	}

	return h.KindList
}
