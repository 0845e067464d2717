package core

import (
	"time"

	"github.com/orgchat/orgchat-server/internal/store"
)

// EventKind is a notification the core emits to connections.
type EventKind int

const (
	// EventConnectionEstablished confirms a successful handshake.
	EventConnectionEstablished EventKind = iota
	// EventUserOnline notifies an organization that a user's first
	// connection came up.
	EventUserOnline
	// EventUserOffline notifies an organization that a user's last
	// connection went away.
	EventUserOffline
	// EventUserJoinedChannel notifies channel occupants about a new arrival.
	EventUserJoinedChannel
	// EventUserLeftChannel notifies channel occupants about a departure.
	EventUserLeftChannel
	// EventChannelUsers delivers the current occupant snapshot to a joiner.
	EventChannelUsers
	// EventNewMessage carries a freshly persisted message.
	EventNewMessage
	// EventMessageEdited carries an updated message.
	EventMessageEdited
	// EventMessageDeleted announces a soft delete; content is not included.
	EventMessageDeleted
	// EventReadReceipt announces that a user read a set of messages.
	EventReadReceipt
	// EventMessageHistory delivers a page of channel history to one connection.
	EventMessageHistory
	// EventChannelActivity is the lightweight digest sent to the org room
	// so unopened channels can show an activity indicator.
	EventChannelActivity
	// EventNewNotification delivers a notification to its recipient.
	EventNewNotification
	// EventNotificationRead confirms a notification was marked read.
	EventNotificationRead
	// EventForceLogout tells a connection it is being terminated.
	EventForceLogout
	// EventSystemStats carries the control-plane snapshot.
	EventSystemStats
	// EventError reports a failed action to the originating connection.
	EventError
)

// MessageView is a message enriched with its sender's display name.
type MessageView struct {
	store.Message
	SenderName string
}

// StatsSnapshot is the control-plane view of live state. It is a read-only
// report, never a source of truth for other components.
type StatsSnapshot struct {
	TotalConnections int
	OnlineUsers      int
	ActiveChannels   int
}

// Event is sent to connections to describe what happened in the system.
type Event struct {
	Kind EventKind

	Org     int64
	Channel int64
	User    int64
	Name    string
	At      time.Time

	Message  *MessageView
	Messages []*MessageView

	Users      []int64
	MessageIDs []int64
	Preview    string

	Notification  *store.Notification
	Notifications []*store.Notification
	Stats         *StatsSnapshot
	Reason        string
	Error         *Error
}
