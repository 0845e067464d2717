package core

// ConnState tracks a connection through its lifecycle. Transitions only
// move forward; Disconnected is terminal.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateActive
	StateDisconnected
)

// Conn is a single transport session as seen by the core layer. It is
// owned by exactly one transport session and never outlives it.
type Conn struct {
	ID       string
	Identity Identity
	Commands chan *Command
	Events   chan *Event

	// joined tracks per-connection channel room membership so that
	// disconnect cleanup does not scan every channel. Mutated only on
	// the hub goroutine.
	joined map[int64]struct{}
	state  ConnState
	done   chan struct{}
}

// NewConn constructs an authenticated connection with initialized channels.
func NewConn(id string, identity Identity) *Conn {
	return &Conn{
		ID:       id,
		Identity: identity,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 64),
		joined:   make(map[int64]struct{}),
		state:    StateAuthenticated,
		done:     make(chan struct{}),
	}
}

// Done is closed when the hub has finished tearing the connection down.
// Transports use it to stop their write loop.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// send delivers an event without blocking the hub. Slow consumers lose
// events rather than stalling fan-out.
func (c *Conn) send(ev *Event) {
	select {
	case c.Events <- ev:
	default:
	}
}
