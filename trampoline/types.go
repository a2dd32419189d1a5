package trampoline

// Handle is an opaque reference to a callback registration.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Event types for callback lifecycle notifications.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventInvalidated
)

// Event represents a callback lifecycle event.
type Event struct {
	Target any
	Name   string
	Ptr    uintptr
	Handle Handle
	Type   EventType
}

// Observer receives notifications about callback lifecycle events.
type Observer interface {
	OnCallbackEvent(Event)
}

// Registration is a point-in-time snapshot of one table entry.
type Registration struct {
	// Name is the label supplied at registration, usually the C
	// signature or the bound parameter the pointer was handed to.
	Name string

	// Ptr is the native function pointer issued for this callback.
	Ptr uintptr

	// Live reports whether invoking Ptr is still sound.
	Live bool
}
