package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client. A
// connection that reaches the socket loop is already authenticated, so
// there is no hello message; the first inbound frame may be any command.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin             = "join"
	InboundTypeLeave            = "leave"
	InboundTypeMsg              = "msg"
	InboundTypeEdit             = "edit"
	InboundTypeDelete           = "delete"
	InboundTypeMarkRead         = "mark_read"
	InboundTypeFetch            = "fetch"
	InboundTypeSubNotifications = "sub_notifications"
	InboundTypeNotificationRead = "notification_read"
	InboundTypeNotify           = "notify"
	InboundTypeAdminKick        = "admin_kick"
	InboundTypeAdminStats       = "admin_stats"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// JoinData requests to join or leave a specific channel.
type JoinData struct {
	Channel int64 `json:"channel"`
}

// MsgData is a chat message from the client.
type MsgData struct {
	Channel     int64    `json:"channel"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`
}

// EditData replaces the body of an earlier message.
type EditData struct {
	MessageID int64  `json:"message_id"`
	Body      string `json:"body"`
}

// DeleteData soft-deletes a message.
type DeleteData struct {
	MessageID int64 `json:"message_id"`
}

// MarkReadData records read receipts; empty ids means the whole channel.
type MarkReadData struct {
	Channel    int64   `json:"channel"`
	MessageIDs []int64 `json:"message_ids,omitempty"`
}

// FetchData pages backwards through channel history.
type FetchData struct {
	Channel int64 `json:"channel"`
	Before  int64 `json:"before,omitempty"`
	Limit   int   `json:"limit,omitempty"`
}

// NotificationReadData marks one notification read.
type NotificationReadData struct {
	NotificationID int64 `json:"notification_id"`
}

// NotifyData creates a notification for another user (admin only).
type NotifyData struct {
	Recipient int64             `json:"recipient"`
	Title     string            `json:"title"`
	Message   string            `json:"message,omitempty"`
	Type      string            `json:"type,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AdminKickData force-disconnects every connection of a user (admin only).
type AdminKickData struct {
	UserID int64 `json:"user_id"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Outbound event names.
const (
	EventConnectionEstablished = "connection_established"
	EventUserOnline            = "user_online"
	EventUserOffline           = "user_offline"
	EventUserJoinedChannel     = "user_joined_channel"
	EventUserLeftChannel       = "user_left_channel"
	EventChannelUsers          = "channel_users"
	EventNewMessage            = "new_message"
	EventMessageEdited         = "message_edited"
	EventMessageDeleted        = "message_deleted"
	EventReadReceipt           = "read_receipt"
	EventMessageHistory        = "message_history"
	EventChannelActivity       = "channel_activity"
	EventNewNotification       = "new_notification"
	EventNotificationRead      = "notification_read"
	EventForceLogout           = "force_logout"
	EventSystemStats           = "system_stats"
)

// PresenceData describes a user's presence transition in an org or channel.
type PresenceData struct {
	Channel int64  `json:"channel,omitempty"`
	Org     int64  `json:"org,omitempty"`
	UserID  int64  `json:"user_id"`
	Name    string `json:"name,omitempty"`
	TS      int64  `json:"ts,omitempty"`
}

// ChannelUsersData is the occupant snapshot delivered to a joiner.
type ChannelUsersData struct {
	Channel int64   `json:"channel"`
	Users   []int64 `json:"users"`
}

// MessageData is a message as delivered to clients, enriched with the
// sender's display name.
type MessageData struct {
	ID          int64    `json:"id"`
	Channel     int64    `json:"channel"`
	SenderID    int64    `json:"sender_id"`
	SenderName  string   `json:"sender_name,omitempty"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`
	ReadBy      []int64  `json:"read_by,omitempty"`
	EditedAt    int64    `json:"edited_at,omitempty"`
	TS          int64    `json:"ts"`
}

// MessageDeletedData carries identifiers only; the content is erased.
type MessageDeletedData struct {
	Channel   int64 `json:"channel"`
	MessageID int64 `json:"message_id"`
}

// ReadReceiptData announces which messages a user has read.
type ReadReceiptData struct {
	Channel    int64   `json:"channel"`
	UserID     int64   `json:"user_id"`
	MessageIDs []int64 `json:"message_ids"`
}

// HistoryData is a reverse-chronological page of channel history.
type HistoryData struct {
	Channel  int64         `json:"channel"`
	Messages []MessageData `json:"messages"`
}

// ActivityData is the lightweight digest broadcast to the org room.
type ActivityData struct {
	Channel  int64  `json:"channel"`
	SenderID int64  `json:"sender_id"`
	Preview  string `json:"preview"`
	TS       int64  `json:"ts"`
}

// NotificationData is a notification as delivered to its recipient.
type NotificationData struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	Message   string            `json:"message,omitempty"`
	Type      string            `json:"type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IsRead    bool              `json:"is_read"`
	CreatedAt int64             `json:"created_at"`
}

// NotificationListData is the unread snapshot sent on subscribe.
type NotificationListData struct {
	Notifications []NotificationData `json:"notifications"`
}

// ForceLogoutData tells a connection why it is being terminated.
type ForceLogoutData struct {
	Reason string `json:"reason"`
}

// StatsData is the control-plane snapshot.
type StatsData struct {
	TotalConnections int `json:"total_connections"`
	OnlineUsers      int `json:"online_users"`
	ActiveChannels   int `json:"active_channels"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
