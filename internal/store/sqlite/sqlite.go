package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/orgchat/orgchat-server/internal/store"
)

// schema is applied on open. All statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	org_id        INTEGER NOT NULL,
	role          TEXT NOT NULL DEFAULT 'member',
	is_active     INTEGER NOT NULL DEFAULT 1,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channels (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	org_id     INTEGER NOT NULL,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'public',
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(org_id, name)
);

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id INTEGER NOT NULL REFERENCES channels(id),
	user_id    INTEGER NOT NULL REFERENCES users(id),
	PRIMARY KEY (channel_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	org_id      INTEGER NOT NULL,
	channel_id  INTEGER NOT NULL REFERENCES channels(id),
	sender_id   INTEGER NOT NULL REFERENCES users(id),
	body        TEXT NOT NULL DEFAULT '',
	attachments TEXT NOT NULL DEFAULT '[]',
	deleted     INTEGER NOT NULL DEFAULT 0,
	edited_at   TIMESTAMP,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, id);

CREATE TABLE IF NOT EXISTS message_reads (
	message_id INTEGER NOT NULL REFERENCES messages(id),
	user_id    INTEGER NOT NULL REFERENCES users(id),
	PRIMARY KEY (message_id, user_id)
);

CREATE TABLE IF NOT EXISTS notifications (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	recipient_id INTEGER NOT NULL REFERENCES users(id),
	title        TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	type         TEXT NOT NULL DEFAULT 'info',
	metadata     TEXT NOT NULL DEFAULT '{}',
	is_read      INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *store.User) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, display_name, org_id, role, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		u.Username, u.PasswordHash, u.DisplayName, u.OrganizationID, u.Role, u.IsActive)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	var active int
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&user.OrganizationID,
		&user.Role,
		&active,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.IsActive = active != 0
	return &user, nil
}

const userColumns = `id, username, password_hash, display_name, org_id, role, is_active, created_at`

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetActiveUser retrieves a user only if it exists and is still active.
func (s *SQLiteStore) GetActiveUser(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND is_active = 1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// ==== ChannelStore implementation ====

// CreateChannel creates a new channel and its initial member set.
func (s *SQLiteStore) CreateChannel(ctx context.Context, ch *store.Channel) (*store.Channel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO channels (org_id, name, type, is_active) VALUES (?, ?, ?, ?)`,
		ch.OrganizationID, ch.Name, ch.Type, ch.IsActive)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	for userID := range ch.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO channel_members (channel_id, user_id) VALUES (?, ?)`,
			id, userID); err != nil {
			return nil, fmt.Errorf("insert channel member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetChannel(ctx, id)
}

// GetChannel retrieves a channel with its member set.
func (s *SQLiteStore) GetChannel(ctx context.Context, id int64) (*store.Channel, error) {
	query := `
		SELECT id, org_id, name, type, is_active, created_at
		FROM channels
		WHERE id = ?
	`
	var ch store.Channel
	var active int
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ch.ID, &ch.OrganizationID, &ch.Name, &ch.Type, &active, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("channel: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query channel: %w", err)
	}
	ch.IsActive = active != 0

	ch.Members = make(map[int64]struct{})
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM channel_members WHERE channel_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query channel members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan channel member: %w", err)
		}
		ch.Members[userID] = struct{}{}
	}

	return &ch, rows.Err()
}

// ListChannels lists channels in the organization the user may see:
// public channels plus private/dm channels the user belongs to.
func (s *SQLiteStore) ListChannels(ctx context.Context, orgID, userID int64) ([]*store.Channel, error) {
	query := `
		SELECT DISTINCT c.id
		FROM channels c
		LEFT JOIN channel_members cm ON c.id = cm.channel_id
		WHERE c.org_id = ? AND (c.type = 'public' OR cm.user_id = ?)
		ORDER BY c.id
	`
	rows, err := s.db.QueryContext(ctx, query, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan channel id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	channels := make([]*store.Channel, 0, len(ids))
	for _, id := range ids {
		ch, err := s.GetChannel(ctx, id)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// AddChannelMember adds a user to a channel's member set. Idempotent.
func (s *SQLiteStore) AddChannelMember(ctx context.Context, channelID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO channel_members (channel_id, user_id) VALUES (?, ?)`,
		channelID, userID)
	if err != nil {
		return fmt.Errorf("insert channel member: %w", err)
	}
	return nil
}

// RemoveChannelMember removes a user from a channel's member set. Idempotent.
func (s *SQLiteStore) RemoveChannelMember(ctx context.Context, channelID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_members WHERE channel_id = ? AND user_id = ?`,
		channelID, userID)
	if err != nil {
		return fmt.Errorf("delete channel member: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message and its initial readBy set.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *store.Message) (*store.Message, error) {
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (org_id, channel_id, sender_id, body, attachments) VALUES (?, ?, ?, ?, ?)`,
		m.OrganizationID, m.ChannelID, m.SenderID, m.Body, string(attachments))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	for _, userID := range m.ReadBy {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO message_reads (message_id, user_id) VALUES (?, ?)`,
			id, userID); err != nil {
			return nil, fmt.Errorf("insert message read: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetMessage(ctx, id)
}

// GetMessage retrieves a message with its readBy set.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, org_id, channel_id, sender_id, body, attachments, deleted, edited_at, created_at
		FROM messages
		WHERE id = ?
	`
	var m store.Message
	var attachments string
	var deleted int
	var editedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.OrganizationID, &m.ChannelID, &m.SenderID,
		&m.Body, &attachments, &deleted, &editedAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	m.Deleted = deleted != 0
	if editedAt.Valid {
		t := editedAt.Time
		m.EditedAt = &t
	}
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM message_reads WHERE message_id = ? ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("query message reads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan message read: %w", err)
		}
		m.ReadBy = append(m.ReadBy, userID)
	}

	return &m, rows.Err()
}

// ListMessages returns a reverse-chronological page of non-deleted messages.
func (s *SQLiteStore) ListMessages(ctx context.Context, channelID int64, page store.MessagePage) ([]*store.Message, error) {
	query := `
		SELECT id FROM messages
		WHERE channel_id = ? AND deleted = 0 AND (? = 0 OR id < ?)
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, channelID, page.Before, page.Before, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan message id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	messages := make([]*store.Message, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// UpdateMessageBody replaces a message body and records the edit time.
func (s *SQLiteStore) UpdateMessageBody(ctx context.Context, id int64, body string, editedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET body = ?, edited_at = ? WHERE id = ? AND deleted = 0`,
		body, editedAt, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message: %w", store.ErrNotFound)
	}
	return nil
}

// SoftDeleteMessage clears content and marks the row deleted. The row and
// its read history are retained for audit.
func (s *SQLiteStore) SoftDeleteMessage(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET body = '', attachments = '[]', deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message: %w", store.ErrNotFound)
	}
	return nil
}

// MarkMessagesRead adds the user to readBy for the given ids, or for all
// messages in the channel when ids is empty. INSERT OR IGNORE keeps the
// operation idempotent.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, channelID, userID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM messages WHERE channel_id = ?`, channelID)
		if err != nil {
			return nil, fmt.Errorf("query channel messages: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return nil, fmt.Errorf("scan message id: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var affected []int64
	for _, id := range ids {
		// Only messages that actually live in this channel count.
		var exists int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM messages WHERE id = ? AND channel_id = ?`, id, channelID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("query message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO message_reads (message_id, user_id) VALUES (?, ?)`,
			id, userID); err != nil {
			return nil, fmt.Errorf("insert message read: %w", err)
		}
		affected = append(affected, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return affected, nil
}

// ==== NotificationStore implementation ====

// CreateNotification persists a notification.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *store.Notification) (*store.Notification, error) {
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (recipient_id, title, message, type, metadata) VALUES (?, ?, ?, ?, ?)`,
		n.RecipientID, n.Title, n.Message, n.Type, string(metadata))
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetNotification(ctx, id)
}

func scanNotification(scan func(dest ...any) error) (*store.Notification, error) {
	var n store.Notification
	var metadata string
	var isRead int
	err := scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Type, &metadata, &isRead, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query notification: %w", err)
	}
	n.IsRead = isRead != 0
	if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &n, nil
}

const notificationColumns = `id, recipient_id, title, message, type, metadata, is_read, created_at`

// GetNotification retrieves a notification by ID.
func (s *SQLiteStore) GetNotification(ctx context.Context, id int64) (*store.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	return scanNotification(row.Scan)
}

// ListUnreadNotifications returns a recipient's unread notifications, oldest first.
func (s *SQLiteStore) ListUnreadNotifications(ctx context.Context, recipientID int64) ([]*store.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE recipient_id = ? AND is_read = 0 ORDER BY id`,
		recipientID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*store.Notification
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks a notification read. Idempotent.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification: %w", store.ErrNotFound)
	}
	return nil
}
