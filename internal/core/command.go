package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinChannel subscribes the connection to a channel room.
	CommandJoinChannel CommandKind = iota
	// CommandLeaveChannel unsubscribes the connection from a channel room.
	CommandLeaveChannel
	// CommandSendMessage delivers a chat message to channel participants.
	CommandSendMessage
	// CommandEditMessage replaces the body of the sender's own message.
	CommandEditMessage
	// CommandDeleteMessage soft-deletes a message.
	CommandDeleteMessage
	// CommandMarkRead records read receipts for channel messages.
	CommandMarkRead
	// CommandFetchMessages pages backwards through channel history.
	CommandFetchMessages
	// CommandSubscribeNotifications delivers unread notifications and
	// registers the connection for future pushes.
	CommandSubscribeNotifications
	// CommandMarkNotificationRead marks the recipient's notification read.
	CommandMarkNotificationRead
	// CommandCreateNotification persists and delivers a notification.
	CommandCreateNotification
	// CommandForceDisconnect terminates every connection of a target user.
	CommandForceDisconnect
	// CommandStats reports an operational snapshot.
	CommandStats
)

// Command represents an action requested by a connection.
type Command struct {
	Kind        CommandKind
	Channel     int64
	MessageID   int64
	Body        string
	Attachments []string
	MessageIDs  []int64
	Before      int64
	Limit       int

	// Notification fields.
	Recipient    int64
	Title        string
	NotifType    string
	Metadata     map[string]string
	Notification int64

	// Control plane fields.
	TargetUser int64
}
