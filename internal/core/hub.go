package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orgchat/orgchat-server/internal/store"
)

// Options configures hub behavior.
type Options struct {
	// OfflineGrace defers the userOffline broadcast after a user's last
	// connection closes, so a dropped transport can reconnect without
	// flapping presence. Zero means broadcast immediately.
	OfflineGrace time.Duration
	// Bridge, when non-nil, republishes room broadcasts for other
	// processes and injects theirs locally.
	Bridge Bridge
}

type inboundKind int

const (
	inboundRegister inboundKind = iota
	inboundUnregister
	inboundCommand
	inboundOfflineTick
	inboundRemote
)

type inbound struct {
	kind inboundKind
	conn *Conn
	cmd  *Command

	// offline tick fields
	user int64
	org  int64
	name string

	// remote broadcast fields
	room    string
	payload []byte
}

// pendingOffline is a scheduled userOffline broadcast that a reconnect
// within the grace window cancels.
type pendingOffline struct {
	timer *time.Timer
	org   int64
	name  string
}

// Hub is the single-threaded reactor coordinating connections, presence
// and fan-out. All shared state is mutated only on the Run goroutine;
// events reach it exclusively through the inbound channel.
type Hub struct {
	store      store.Store
	log        zerolog.Logger
	reg        *Registry
	bridge     Bridge
	grace      time.Duration
	instanceID string

	inbound chan inbound
	quit    chan struct{}

	// Run-goroutine state below.
	ctx          context.Context
	connsByUser  map[int64]map[*Conn]struct{}
	orgRooms     map[int64]*room
	channelRooms map[int64]*room
	bridgeSubs   map[string]func()
	offline      map[int64]*pendingOffline
}

// NewHub creates a hub backed by the given store. logger may be nil.
func NewHub(st store.Store, logger *zerolog.Logger, opts Options) *Hub {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Hub{
		store:        st,
		log:          lg,
		reg:          NewRegistry(),
		bridge:       opts.Bridge,
		grace:        opts.OfflineGrace,
		instanceID:   uuid.NewString(),
		inbound:      make(chan inbound, 256),
		quit:         make(chan struct{}),
		connsByUser:  make(map[int64]map[*Conn]struct{}),
		orgRooms:     make(map[int64]*room),
		channelRooms: make(map[int64]*room),
		bridgeSubs:   make(map[string]func()),
		offline:      make(map[int64]*pendingOffline),
	}
}

// Registry exposes the presence registry for read-only consumers.
func (h *Hub) Registry() *Registry {
	return h.reg
}

// Run drains the inbound channel until the context is cancelled. It must
// be running before any connection is registered.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.quit)
	defer h.cancelBridgeSubs()

	for {
		select {
		case in := <-h.inbound:
			h.dispatch(in)
		case <-ctx.Done():
			return
		}
	}
}

// RegisterConn hands an authenticated connection to the hub and starts
// forwarding its commands into the reactor.
func (h *Hub) RegisterConn(c *Conn) {
	h.post(inbound{kind: inboundRegister, conn: c})

	go func() {
		for {
			select {
			case cmd := <-c.Commands:
				h.post(inbound{kind: inboundCommand, conn: c, cmd: cmd})
			case <-c.done:
				return
			case <-h.quit:
				return
			}
		}
	}()
}

// UnregisterConn tears the connection down. Safe to call more than once
// and for connections already force-disconnected.
func (h *Hub) UnregisterConn(c *Conn) {
	h.post(inbound{kind: inboundUnregister, conn: c})
}

func (h *Hub) post(in inbound) {
	select {
	case h.inbound <- in:
	case <-h.quit:
	}
}

func (h *Hub) dispatch(in inbound) {
	switch in.kind {
	case inboundRegister:
		h.handleRegister(in.conn)
	case inboundUnregister:
		h.cleanupConn(in.conn, false)
	case inboundCommand:
		h.handleCommand(in.conn, in.cmd)
	case inboundOfflineTick:
		h.handleOfflineTick(in.user, in.org, in.name)
	case inboundRemote:
		h.handleRemote(in.room, in.payload)
	}
}

func (h *Hub) handleCommand(c *Conn, cmd *Command) {
	if c.state != StateActive {
		return
	}
	switch cmd.Kind {
	case CommandJoinChannel:
		h.handleJoinChannel(c, cmd.Channel)
	case CommandLeaveChannel:
		h.handleLeaveChannel(c, cmd.Channel)
	case CommandSendMessage:
		h.handleSendMessage(c, cmd)
	case CommandEditMessage:
		h.handleEditMessage(c, cmd)
	case CommandDeleteMessage:
		h.handleDeleteMessage(c, cmd)
	case CommandMarkRead:
		h.handleMarkRead(c, cmd)
	case CommandFetchMessages:
		h.handleFetchMessages(c, cmd)
	case CommandSubscribeNotifications:
		h.handleSubscribeNotifications(c)
	case CommandMarkNotificationRead:
		h.handleMarkNotificationRead(c, cmd.Notification)
	case CommandCreateNotification:
		h.handleCreateNotification(c, cmd)
	case CommandForceDisconnect:
		h.handleForceDisconnect(c, cmd.TargetUser)
	case CommandStats:
		h.handleStats(c)
	default:
		h.sendError(c, CodeInvalidPayload, "unknown command")
	}
}

// ==== connection lifecycle ====

func (h *Hub) handleRegister(c *Conn) {
	if c.state != StateAuthenticated {
		return
	}
	c.state = StateActive
	id := c.Identity

	set, ok := h.connsByUser[id.UserID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.connsByUser[id.UserID] = set
		h.openBridgeSub(userRoomKey(id.UserID))
	}
	set[c] = struct{}{}

	orgRoom := h.orgRoom(id.OrganizationID, true)
	orgRoom.add(c)

	first := h.reg.Register(id.UserID, c.ID)
	c.send(&Event{
		Kind: EventConnectionEstablished,
		User: id.UserID,
		Org:  id.OrganizationID,
		Name: id.DisplayName,
		At:   time.Now(),
	})

	if !first {
		return
	}
	if pending, ok := h.offline[id.UserID]; ok {
		// Reconnected within the grace window; the offline broadcast
		// never fired, so the matching online broadcast is suppressed.
		pending.timer.Stop()
		delete(h.offline, id.UserID)
		h.log.Debug().Int64("user_id", id.UserID).Msg("presence resumed within grace window")
		return
	}
	h.reg.MarkOnline(id.OrganizationID, id.UserID)
	h.broadcastOrg(id.OrganizationID, &Event{
		Kind: EventUserOnline,
		User: id.UserID,
		Org:  id.OrganizationID,
		Name: id.DisplayName,
		At:   time.Now(),
	})
	h.log.Info().Int64("user_id", id.UserID).Int64("org_id", id.OrganizationID).Msg("user online")
}

// cleanupConn moves a connection to Disconnected and unwinds every piece
// of registry state it owns. Idempotent; forced disconnects skip the
// offline grace window.
func (h *Hub) cleanupConn(c *Conn, forced bool) {
	if c.state == StateDisconnected {
		return
	}
	wasActive := c.state == StateActive
	c.state = StateDisconnected
	id := c.Identity

	if wasActive {
		for channelID := range c.joined {
			h.leaveChannelRoom(c, channelID)
		}

		if set, ok := h.connsByUser[id.UserID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.connsByUser, id.UserID)
				h.cancelBridgeSub(userRoomKey(id.UserID))
			}
		}
		if orgRoom, ok := h.orgRooms[id.OrganizationID]; ok {
			orgRoom.remove(c)
			if orgRoom.empty() {
				delete(h.orgRooms, id.OrganizationID)
				h.cancelBridgeSub(orgRoomKey(id.OrganizationID))
			}
		}

		last := h.reg.Unregister(id.UserID, c.ID)
		if last {
			if forced || h.grace == 0 {
				h.emitOffline(id.UserID, id.OrganizationID, id.DisplayName)
			} else {
				h.scheduleOffline(id.UserID, id.OrganizationID, id.DisplayName)
			}
		}
	}

	close(c.done)
	h.log.Debug().Str("conn_id", c.ID).Int64("user_id", id.UserID).Msg("connection cleaned up")
}

func (h *Hub) scheduleOffline(userID, orgID int64, name string) {
	if pending, ok := h.offline[userID]; ok {
		pending.timer.Stop()
	}
	timer := time.AfterFunc(h.grace, func() {
		h.post(inbound{kind: inboundOfflineTick, user: userID, org: orgID, name: name})
	})
	h.offline[userID] = &pendingOffline{timer: timer, org: orgID, name: name}
}

func (h *Hub) handleOfflineTick(userID, orgID int64, name string) {
	if _, ok := h.offline[userID]; !ok {
		return
	}
	delete(h.offline, userID)
	if h.reg.IsOnline(userID) {
		return
	}
	h.emitOffline(userID, orgID, name)
}

func (h *Hub) emitOffline(userID, orgID int64, name string) {
	if !h.reg.MarkOffline(orgID, userID) {
		return
	}
	h.broadcastOrg(orgID, &Event{
		Kind: EventUserOffline,
		User: userID,
		Org:  orgID,
		Name: name,
		At:   time.Now(),
	})
	h.log.Info().Int64("user_id", userID).Int64("org_id", orgID).Msg("user offline")
}

// ==== channel presence ====

func (h *Hub) handleJoinChannel(c *Conn, channelID int64) {
	ch, cerr := h.loadChannel(c.Identity, channelID, false)
	if cerr != nil {
		h.sendError(c, cerr.Code, cerr.Message)
		return
	}

	room := h.channelRoom(ch.ID, true)
	if _, already := c.joined[ch.ID]; !already {
		room.add(c)
		c.joined[ch.ID] = struct{}{}
		if h.reg.JoinChannel(ch.ID, c.Identity.UserID) {
			h.broadcastChannel(ch.ID, &Event{
				Kind:    EventUserJoinedChannel,
				Channel: ch.ID,
				User:    c.Identity.UserID,
				Name:    c.Identity.DisplayName,
				At:      time.Now(),
			}, c)
		}
	}

	// The joiner gets the occupant snapshot instead of its own join event.
	c.send(&Event{
		Kind:    EventChannelUsers,
		Channel: ch.ID,
		Users:   h.reg.UsersPresentIn(ch.ID),
	})
}

func (h *Hub) handleLeaveChannel(c *Conn, channelID int64) {
	if _, ok := c.joined[channelID]; !ok {
		h.sendError(c, CodeNotFound, "channel not joined")
		return
	}
	h.leaveChannelRoom(c, channelID)
}

// leaveChannelRoom removes the connection from the channel room and
// broadcasts the departure only when the user's last connection in that
// channel is gone.
func (h *Hub) leaveChannelRoom(c *Conn, channelID int64) {
	delete(c.joined, channelID)
	room, ok := h.channelRooms[channelID]
	if !ok {
		return
	}
	room.remove(c)

	if h.reg.LeaveChannel(channelID, c.Identity.UserID) {
		h.broadcastChannel(channelID, &Event{
			Kind:    EventUserLeftChannel,
			Channel: channelID,
			User:    c.Identity.UserID,
			Name:    c.Identity.DisplayName,
			At:      time.Now(),
		}, c)
	}
	if room.empty() {
		delete(h.channelRooms, channelID)
		h.cancelBridgeSub(channelRoomKey(channelID))
	}
}

// ==== rooms and fan-out ====

func (h *Hub) orgRoom(orgID int64, create bool) *room {
	r, ok := h.orgRooms[orgID]
	if !ok && create {
		r = newRoom()
		h.orgRooms[orgID] = r
		h.openBridgeSub(orgRoomKey(orgID))
	}
	return r
}

func (h *Hub) channelRoom(channelID int64, create bool) *room {
	r, ok := h.channelRooms[channelID]
	if !ok && create {
		r = newRoom()
		h.channelRooms[channelID] = r
		h.openBridgeSub(channelRoomKey(channelID))
	}
	return r
}

func (h *Hub) broadcastOrg(orgID int64, ev *Event, skip ...*Conn) {
	if r, ok := h.orgRooms[orgID]; ok {
		r.broadcast(ev, skip...)
	}
	h.publish(orgRoomKey(orgID), ev)
}

func (h *Hub) broadcastChannel(channelID int64, ev *Event, skip ...*Conn) {
	if r, ok := h.channelRooms[channelID]; ok {
		r.broadcast(ev, skip...)
	}
	h.publish(channelRoomKey(channelID), ev)
}

// sendToUser delivers an event to every live connection of one user on
// this process. Not a room; used for notifications and forced logout.
func (h *Hub) sendToUser(userID int64, ev *Event) {
	for c := range h.connsByUser[userID] {
		c.send(ev)
	}
}

// notifyUser is sendToUser plus a bridge publish, so notification pushes
// reach a recipient whose connections live on another process. Forced
// logout stays process-local; only the process holding a connection may
// tear it down.
func (h *Hub) notifyUser(userID int64, ev *Event) {
	h.sendToUser(userID, ev)
	h.publish(userRoomKey(userID), ev)
}

func (h *Hub) sendError(c *Conn, code Code, msg string) {
	// Errors go to the originating connection only, and only while it is
	// still registered.
	if c.state == StateDisconnected {
		return
	}
	c.send(&Event{Kind: EventError, Error: NewError(code, msg)})
}

// ==== bridge ====

func (h *Hub) publish(roomKey string, ev *Event) {
	if h.bridge == nil {
		return
	}
	payload, err := encodeEnvelope(h.instanceID, roomKey, ev)
	if err != nil {
		h.log.Error().Err(err).Msg("encode bridge payload")
		return
	}
	if err := h.bridge.Publish(h.ctx, roomKey, payload); err != nil {
		h.log.Warn().Err(err).Str("room", roomKey).Msg("bridge publish failed")
	}
}

func (h *Hub) openBridgeSub(roomKey string) {
	if h.bridge == nil {
		return
	}
	if _, ok := h.bridgeSubs[roomKey]; ok {
		return
	}
	cancel, err := h.bridge.Subscribe(roomKey, func(payload []byte) {
		h.post(inbound{kind: inboundRemote, room: roomKey, payload: payload})
	})
	if err != nil {
		h.log.Warn().Err(err).Str("room", roomKey).Msg("bridge subscribe failed")
		return
	}
	h.bridgeSubs[roomKey] = cancel
}

func (h *Hub) cancelBridgeSub(roomKey string) {
	if cancel, ok := h.bridgeSubs[roomKey]; ok {
		cancel()
		delete(h.bridgeSubs, roomKey)
	}
}

func (h *Hub) cancelBridgeSubs() {
	for key, cancel := range h.bridgeSubs {
		cancel()
		delete(h.bridgeSubs, key)
	}
}

// handleRemote delivers a broadcast that originated on another process to
// local room members. Origin-local exclusions do not apply here; the
// excluded connection lives on the publishing process.
func (h *Hub) handleRemote(roomKey string, payload []byte) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		h.log.Warn().Err(err).Msg("drop malformed bridge payload")
		return
	}
	if env.Origin == h.instanceID || env.Event == nil {
		return
	}
	kind, id, err := parseRoomKey(roomKey)
	if err != nil {
		h.log.Warn().Err(err).Str("room", roomKey).Msg("drop bridge payload for unknown room")
		return
	}
	switch kind {
	case "org":
		if r, ok := h.orgRooms[id]; ok {
			r.broadcast(env.Event)
		}
	case "channel":
		if r, ok := h.channelRooms[id]; ok {
			r.broadcast(env.Event)
		}
	case "user":
		h.sendToUser(id, env.Event)
	}
}
