package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Role defines a user's role within their organization.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Admin reports whether the role carries administrative privilege.
func (r Role) Admin() bool {
	return r == RoleAdmin || r == RoleManager
}

// User represents a user in the system.
type User struct {
	ID             int64
	Username       string
	PasswordHash   string
	DisplayName    string
	OrganizationID int64
	Role           Role
	IsActive       bool
	CreatedAt      time.Time
}

// ChannelType defines different types of channels.
type ChannelType string

const (
	ChannelTypePublic  ChannelType = "public"
	ChannelTypePrivate ChannelType = "private"
	ChannelTypeDirect  ChannelType = "dm"
)

// Channel represents a chat channel. Public channels have no explicit
// member list; anyone in the owning organization may join. Private and
// direct channels require membership.
type Channel struct {
	ID             int64
	OrganizationID int64
	Name           string
	Type           ChannelType
	IsActive       bool
	Members        map[int64]struct{}
	CreatedAt      time.Time
}

// IsMember reports whether the user is an explicit member of the channel.
func (c *Channel) IsMember(userID int64) bool {
	_, ok := c.Members[userID]
	return ok
}

// Message represents a persisted chat message. Deleted messages keep
// their row with body and attachments cleared.
type Message struct {
	ID             int64
	OrganizationID int64
	ChannelID      int64
	SenderID       int64
	Body           string
	Attachments    []string
	ReadBy         []int64
	Deleted        bool
	EditedAt       *time.Time
	CreatedAt      time.Time
}

// Notification represents a persisted out-of-band notice for one user.
type Notification struct {
	ID          int64
	RecipientID int64
	Title       string
	Message     string
	Type        string
	Metadata    map[string]string
	IsRead      bool
	CreatedAt   time.Time
}

// MessagePage describes pagination for message history queries.
type MessagePage struct {
	Before int64 // return messages with ID < Before; 0 means newest
	Limit  int
}

// UserStore provides user persistence operations.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// GetActiveUser returns the user only if it exists and is active.
	// Returns ErrNotFound otherwise.
	GetActiveUser(ctx context.Context, id int64) (*User, error)
}

// ChannelStore provides channel persistence operations.
type ChannelStore interface {
	CreateChannel(ctx context.Context, ch *Channel) (*Channel, error)
	// GetChannel returns the channel with its member set loaded.
	GetChannel(ctx context.Context, id int64) (*Channel, error)
	ListChannels(ctx context.Context, orgID, userID int64) ([]*Channel, error)
	AddChannelMember(ctx context.Context, channelID, userID int64) error
	RemoveChannelMember(ctx context.Context, channelID, userID int64) error
}

// MessageStore provides message persistence operations.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *Message) (*Message, error)
	GetMessage(ctx context.Context, id int64) (*Message, error)
	// ListMessages returns a reverse-chronological page of non-deleted
	// messages in the channel.
	ListMessages(ctx context.Context, channelID int64, page MessagePage) ([]*Message, error)
	UpdateMessageBody(ctx context.Context, id int64, body string, editedAt time.Time) error
	// SoftDeleteMessage clears body and attachments and marks the row deleted.
	SoftDeleteMessage(ctx context.Context, id int64) error
	// MarkMessagesRead adds the user to readBy for the given message ids
	// (all messages in the channel when ids is empty). Idempotent.
	// Returns the ids affected, including already-read ones.
	MarkMessagesRead(ctx context.Context, channelID, userID int64, ids []int64) ([]int64, error)
}

// NotificationStore provides notification persistence operations.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) (*Notification, error)
	GetNotification(ctx context.Context, id int64) (*Notification, error)
	ListUnreadNotifications(ctx context.Context, recipientID int64) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Store combines all persistence interfaces.
type Store interface {
	UserStore
	ChannelStore
	MessageStore
	NotificationStore

	Close() error
}
