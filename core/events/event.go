package events

// Event represents a structured state change emitted by the launchpad.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (RPC, indexers, logs).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into engines until a real sink is configured.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
