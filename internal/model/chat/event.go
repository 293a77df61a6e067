package chat

// EventKind tags a relay stream event.
type EventKind string

const (
	EventMessage  EventKind = "message"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// CompleteText is the payload of the terminal complete event.
const CompleteText = "Message transmission complete"

// Event is one item of a relay stream. Exactly one of complete or error ends a stream.
type Event struct {
	Kind EventKind `json:"event"`
	Text string    `json:"data"`
}

// Terminal reports whether no event may follow e.
func (e Event) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventError
}
