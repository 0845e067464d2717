package core

import "sync"

// Registry is the single source of truth for which connections, users and
// channels are live on this process. The hub is the only writer; stats and
// broadcast paths read concurrently, so access is guarded by a RWMutex.
//
// Invariants enforced here, never by direct map access:
//   - a userID key exists iff its connection set is non-empty
//   - a user appears in an org presence set iff it is online and that org
//     is the user's last-known organization
//   - a user appears in a channel presence set iff at least one of its
//     connections has joined that channel
type Registry struct {
	mu sync.RWMutex

	// userID -> set of connection IDs
	conns map[int64]map[string]struct{}
	// organizationID -> set of online userIDs
	orgPresence map[int64]map[int64]struct{}
	// channelID -> set of present userIDs
	channelPresence map[int64]map[int64]struct{}
	// channelID -> userID -> number of that user's connections joined.
	// Lets the "left channel" broadcast fire only when the user's last
	// connection in the channel closes.
	channelRefs map[int64]map[int64]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:           make(map[int64]map[string]struct{}),
		orgPresence:     make(map[int64]map[int64]struct{}),
		channelPresence: make(map[int64]map[int64]struct{}),
		channelRefs:     make(map[int64]map[int64]int),
	}
}

// Register records a live connection for the user. Idempotent. Returns
// true when the user's connection count crossed 0 to 1.
func (r *Registry) Register(userID int64, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	if _, exists := set[connID]; exists {
		return false
	}
	set[connID] = struct{}{}
	return len(set) == 1
}

// Unregister removes a connection for the user. Idempotent. Returns true
// when the user's connection count crossed 1 to 0. Empty sets are removed
// immediately, never left dangling.
func (r *Registry) Unregister(userID int64, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return false
	}
	if _, exists := set[connID]; !exists {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
		return true
	}
	return false
}

// ConnectionsOf returns a copy of the user's live connection IDs.
func (r *Registry) ConnectionsOf(userID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// MarkOnline adds the user to the organization presence set. Returns true
// if the user was not already present.
func (r *Registry) MarkOnline(orgID, userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.orgPresence[orgID]
	if !ok {
		set = make(map[int64]struct{})
		r.orgPresence[orgID] = set
	}
	if _, exists := set[userID]; exists {
		return false
	}
	set[userID] = struct{}{}
	return true
}

// MarkOffline removes the user from the organization presence set.
// Returns true if the user was present.
func (r *Registry) MarkOffline(orgID, userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.orgPresence[orgID]
	if !ok {
		return false
	}
	if _, exists := set[userID]; !exists {
		return false
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(r.orgPresence, orgID)
	}
	return true
}

// JoinChannel increments the user's connection count in the channel.
// Returns true when the user became present (count crossed 0 to 1).
func (r *Registry) JoinChannel(channelID, userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	refs, ok := r.channelRefs[channelID]
	if !ok {
		refs = make(map[int64]int)
		r.channelRefs[channelID] = refs
	}
	refs[userID]++
	if refs[userID] != 1 {
		return false
	}

	set, ok := r.channelPresence[channelID]
	if !ok {
		set = make(map[int64]struct{})
		r.channelPresence[channelID] = set
	}
	set[userID] = struct{}{}
	return true
}

// LeaveChannel decrements the user's connection count in the channel.
// Returns true when the user stopped being present (count crossed 1 to 0).
func (r *Registry) LeaveChannel(channelID, userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	refs, ok := r.channelRefs[channelID]
	if !ok {
		return false
	}
	if refs[userID] == 0 {
		return false
	}
	refs[userID]--
	if refs[userID] > 0 {
		return false
	}
	delete(refs, userID)
	if len(refs) == 0 {
		delete(r.channelRefs, channelID)
	}

	if set, ok := r.channelPresence[channelID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.channelPresence, channelID)
		}
	}
	return true
}

// UsersOnlineIn returns a point-in-time copy of the organization's online
// user set. Callers never observe future mutations through it.
func (r *Registry) UsersOnlineIn(orgID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyIDSet(r.orgPresence[orgID])
}

// UsersPresentIn returns a point-in-time copy of the channel's present
// user set.
func (r *Registry) UsersPresentIn(channelID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyIDSet(r.channelPresence[channelID])
}

// Counts reports total live connections and the number of channels with
// non-empty presence.
func (r *Registry) Counts() (connections, activeChannels int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, set := range r.conns {
		connections += len(set)
	}
	return connections, len(r.channelPresence)
}

func copyIDSet(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
