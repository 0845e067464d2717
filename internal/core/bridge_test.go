package core

import (
	"context"
	"sync"
	"testing"

	"github.com/orgchat/orgchat-server/internal/store"
)

func TestParseRoomKey(t *testing.T) {
	kind, id, err := parseRoomKey(orgRoomKey(10))
	if err != nil || kind != "org" || id != 10 {
		t.Fatalf("unexpected parse: %s %d %v", kind, id, err)
	}
	kind, id, err = parseRoomKey(channelRoomKey(5))
	if err != nil || kind != "channel" || id != 5 {
		t.Fatalf("unexpected parse: %s %d %v", kind, id, err)
	}
	kind, id, err = parseRoomKey(userRoomKey(7))
	if err != nil || kind != "user" || id != 7 {
		t.Fatalf("unexpected parse: %s %d %v", kind, id, err)
	}
	for _, bad := range []string{"", "org", ":5", "org:zero"} {
		if _, _, err := parseRoomKey(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	payload, err := encodeEnvelope("instance-a", "channel:5", &Event{
		Kind:    EventNewMessage,
		Channel: 5,
		Message: &MessageView{Message: store.Message{ID: 3, Body: "hello"}, SenderName: "alice"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, err := decodeEnvelope(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Origin != "instance-a" || env.Room != "channel:5" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Event == nil || env.Event.Message.Body != "hello" || env.Event.Message.SenderName != "alice" {
		t.Fatalf("event lost in transit: %+v", env.Event)
	}
}

// fakeBus delivers published payloads synchronously to every subscriber
// of the room, the publisher's own process included.
type fakeBus struct {
	mu   sync.Mutex
	subs map[string][]func([]byte)
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string][]func([]byte))}
}

func (b *fakeBus) Publish(_ context.Context, room string, payload []byte) error {
	b.mu.Lock()
	handlers := append([]func([]byte){}, b.subs[room]...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (b *fakeBus) Subscribe(room string, handler func(payload []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[room] = append(b.subs[room], handler)
	return func() {}, nil
}

func TestBridgeFanOutAcrossHubs(t *testing.T) {
	st := newFakeStore()
	st.addChannel(&store.Channel{
		ID:             5,
		OrganizationID: 10,
		Name:           "general",
		Type:           store.ChannelTypePublic,
		IsActive:       true,
	})
	bus := newFakeBus()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hubA := NewHub(st, nil, Options{Bridge: bus})
	hubB := NewHub(st, nil, Options{Bridge: bus})
	go hubA.Run(ctx)
	go hubB.Run(ctx)

	sender := connect(t, hubA, member(1, 10, "alice"))
	remote := connect(t, hubB, member(2, 10, "bob"))
	for _, p := range []struct {
		h *Hub
		c *Conn
	}{{hubA, sender}, {hubB, remote}} {
		p.c.Commands <- &Command{Kind: CommandJoinChannel, Channel: 5}
		mustEvent(t, p.c.Events, EventChannelUsers)
	}

	sender.Commands <- &Command{Kind: CommandSendMessage, Channel: 5, Body: "hello"}

	// The remote hub delivers the bridged copy to its own room members.
	ev := mustEvent(t, remote.Events, EventNewMessage)
	if ev.Message.Body != "hello" {
		t.Fatalf("expected bridged message, got %+v", ev)
	}

	// The publishing hub hears its own publication and must drop it.
	mustEvent(t, sender.Events, EventNewMessage)
	mustNoEvent(t, sender.Events, EventNewMessage)
}

func TestBridgeDeliversNotificationsAcrossHubs(t *testing.T) {
	st := newFakeStore()
	bus := newFakeBus()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hubA := NewHub(st, nil, Options{Bridge: bus})
	hubB := NewHub(st, nil, Options{Bridge: bus})
	go hubA.Run(ctx)
	go hubB.Run(ctx)

	boss := connect(t, hubA, admin(3, 10, "carol"))
	recipient := connect(t, hubB, member(1, 10, "alice"))

	// The recipient holds no connection on the publishing hub; delivery
	// must travel over the bridge.
	boss.Commands <- &Command{Kind: CommandCreateNotification, Recipient: 1, Title: "maintenance"}
	ev := mustEvent(t, recipient.Events, EventNewNotification)
	if ev.Notification == nil || ev.Notification.Title != "maintenance" {
		t.Fatalf("expected bridged notification, got %+v", ev)
	}
	mustNoEvent(t, recipient.Events, EventNewNotification)
}
