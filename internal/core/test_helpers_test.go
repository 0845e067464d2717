package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orgchat/orgchat-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent asserts no event of the given kind arrives within a short
// settle window; other kinds are discarded.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// fakeStore is an in-memory store.Store for hub tests.
type fakeStore struct {
	mu            sync.Mutex
	users         map[int64]*store.User
	channels      map[int64]*store.Channel
	messages      map[int64]*store.Message
	notifications map[int64]*store.Notification
	nextMessage   int64
	nextNotif     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[int64]*store.User),
		channels:      make(map[int64]*store.Channel),
		messages:      make(map[int64]*store.Message),
		notifications: make(map[int64]*store.Notification),
		nextMessage:   1,
		nextNotif:     1,
	}
}

func (f *fakeStore) addUser(u *store.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeStore) addChannel(ch *store.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch.Members == nil {
		ch.Members = make(map[int64]struct{})
	}
	f.channels[ch.ID] = ch
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) CreateUser(_ context.Context, u *store.User) (*store.User, error) {
	f.addUser(u)
	return u, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetActiveUser(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok && u.IsActive {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CreateChannel(_ context.Context, ch *store.Channel) (*store.Channel, error) {
	f.addChannel(ch)
	return ch, nil
}

func (f *fakeStore) GetChannel(_ context.Context, id int64) (*store.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[id]; ok {
		return ch, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListChannels(_ context.Context, orgID, userID int64) ([]*store.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Channel
	for _, ch := range f.channels {
		if ch.OrganizationID != orgID {
			continue
		}
		if ch.Type == store.ChannelTypePublic || ch.IsMember(userID) {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeStore) AddChannelMember(_ context.Context, channelID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[channelID]; ok {
		ch.Members[userID] = struct{}{}
	}
	return nil
}

func (f *fakeStore) RemoveChannelMember(_ context.Context, channelID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[channelID]; ok {
		delete(ch.Members, userID)
	}
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m *store.Message) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *m
	stored.ID = f.nextMessage
	stored.CreatedAt = time.Now()
	f.nextMessage++
	f.messages[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (f *fakeStore) GetMessage(_ context.Context, id int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		out := *m
		return &out, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListMessages(_ context.Context, channelID int64, page store.MessagePage) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Message
	for id := f.nextMessage - 1; id > 0; id-- {
		m, ok := f.messages[id]
		if !ok || m.ChannelID != channelID || m.Deleted {
			continue
		}
		if page.Before != 0 && id >= page.Before {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if len(out) == page.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateMessageBody(_ context.Context, id int64, body string, editedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok || m.Deleted {
		return store.ErrNotFound
	}
	m.Body = body
	m.EditedAt = &editedAt
	return nil
}

func (f *fakeStore) SoftDeleteMessage(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Body = ""
	m.Attachments = nil
	m.Deleted = true
	return nil
}

func (f *fakeStore) MarkMessagesRead(_ context.Context, channelID, userID int64, ids []int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ids) == 0 {
		for id, m := range f.messages {
			if m.ChannelID == channelID {
				ids = append(ids, id)
			}
		}
	}
	var affected []int64
	for _, id := range ids {
		m, ok := f.messages[id]
		if !ok || m.ChannelID != channelID {
			continue
		}
		seen := false
		for _, r := range m.ReadBy {
			if r == userID {
				seen = true
				break
			}
		}
		if !seen {
			m.ReadBy = append(m.ReadBy, userID)
		}
		affected = append(affected, id)
	}
	return affected, nil
}

func (f *fakeStore) CreateNotification(_ context.Context, n *store.Notification) (*store.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *n
	stored.ID = f.nextNotif
	stored.CreatedAt = time.Now()
	f.nextNotif++
	f.notifications[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (f *fakeStore) GetNotification(_ context.Context, id int64) (*store.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.notifications[id]; ok {
		out := *n
		return &out, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListUnreadNotifications(_ context.Context, recipientID int64) ([]*store.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Notification
	for id := int64(1); id < f.nextNotif; id++ {
		n, ok := f.notifications[id]
		if ok && n.RecipientID == recipientID && !n.IsRead {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	n.IsRead = true
	return nil
}
