package core

// room groups connections subscribed to the same broadcast target: all
// connections of one organization, or all connections currently joined
// to one channel. Accessed only from the hub goroutine.
type room struct {
	conns map[*Conn]struct{}
}

func newRoom() *room {
	return &room{conns: make(map[*Conn]struct{})}
}

// add inserts a connection into the room. Returns true if newly added.
func (r *room) add(c *Conn) bool {
	if _, exists := r.conns[c]; exists {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

// remove deletes a connection from the room. Returns true if removed.
func (r *room) remove(c *Conn) bool {
	if _, exists := r.conns[c]; !exists {
		return false
	}
	delete(r.conns, c)
	return true
}

// broadcast sends an event to every connection in the room except those
// in skip.
func (r *room) broadcast(ev *Event, skip ...*Conn) {
	for c := range r.conns {
		skipped := false
		for _, s := range skip {
			if c == s {
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}
		c.send(ev)
	}
}

func (r *room) empty() bool {
	return len(r.conns) == 0
}
