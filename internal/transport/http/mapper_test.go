package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/orgchat/orgchat-server/internal/core"
	"github.com/orgchat/orgchat-server/internal/proto"
	"github.com/orgchat/orgchat-server/internal/store"
)

func inboundFrame(t *testing.T, msgType string, data any) proto.Inbound {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	return proto.Inbound{Type: msgType, Data: raw}
}

func TestInboundToCommand(t *testing.T) {
	cmd, perr, err := inboundToCommand(inboundFrame(t, proto.InboundTypeMsg, proto.MsgData{
		Channel:     5,
		Body:        "hello",
		Attachments: []string{"a.png"},
	}))
	if err != nil || perr != nil {
		t.Fatalf("unexpected errors: %v %v", err, perr)
	}
	if cmd.Kind != core.CommandSendMessage || cmd.Channel != 5 || cmd.Body != "hello" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if len(cmd.Attachments) != 1 {
		t.Fatalf("attachments lost in mapping: %+v", cmd)
	}

	cmd, perr, err = inboundToCommand(inboundFrame(t, proto.InboundTypeMarkRead, proto.MarkReadData{
		Channel:    5,
		MessageIDs: []int64{1, 2},
	}))
	if err != nil || perr != nil {
		t.Fatalf("unexpected errors: %v %v", err, perr)
	}
	if cmd.Kind != core.CommandMarkRead || len(cmd.MessageIDs) != 2 {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	cmd, perr, err = inboundToCommand(inboundFrame(t, proto.InboundTypeAdminKick, proto.AdminKickData{UserID: 7}))
	if err != nil || perr != nil {
		t.Fatalf("unexpected errors: %v %v", err, perr)
	}
	if cmd.Kind != core.CommandForceDisconnect || cmd.TargetUser != 7 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestInboundToCommandValidation(t *testing.T) {
	// Missing required fields map to a payload error without a command.
	cmd, perr, err := inboundToCommand(inboundFrame(t, proto.InboundTypeJoin, proto.JoinData{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != nil || perr == nil || perr.Code != string(core.CodeInvalidPayload) {
		t.Fatalf("expected payload error, got cmd=%+v perr=%+v", cmd, perr)
	}

	cmd, perr, err = inboundToCommand(proto.Inbound{Type: "dance"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != nil || perr == nil {
		t.Fatal("unknown types must map to a payload error")
	}

	// Malformed JSON is a transport error, not a payload error.
	_, _, err = inboundToCommand(proto.Inbound{Type: proto.InboundTypeMsg, Data: json.RawMessage(`{`)})
	if err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestOutboundFromEventPresence(t *testing.T) {
	at := time.Unix(1700000000, 0)
	out := outboundFromEvent(&core.Event{
		Kind: core.EventUserOnline,
		Org:  10,
		User: 1,
		Name: "alice",
		At:   at,
	})
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventUserOnline {
		t.Fatalf("unexpected outbound: %+v", out)
	}
	data, ok := out.Data.(proto.PresenceData)
	if !ok {
		t.Fatalf("unexpected data type: %T", out.Data)
	}
	if data.UserID != 1 || data.Org != 10 || data.TS != at.Unix() {
		t.Fatalf("unexpected presence data: %+v", data)
	}
}

func TestOutboundFromEventMessage(t *testing.T) {
	editedAt := time.Unix(1700000100, 0)
	out := outboundFromEvent(&core.Event{
		Kind:    core.EventMessageEdited,
		Channel: 5,
		Message: &core.MessageView{
			Message: store.Message{
				ID:        3,
				ChannelID: 5,
				SenderID:  1,
				Body:      "final",
				ReadBy:    []int64{1},
				EditedAt:  &editedAt,
				CreatedAt: time.Unix(1700000000, 0),
			},
			SenderName: "alice",
		},
	})
	data, ok := out.Data.(proto.MessageData)
	if !ok {
		t.Fatalf("unexpected data type: %T", out.Data)
	}
	if data.ID != 3 || data.Body != "final" || data.SenderName != "alice" {
		t.Fatalf("unexpected message data: %+v", data)
	}
	if data.EditedAt != editedAt.Unix() {
		t.Fatalf("expected edited_at %d, got %d", editedAt.Unix(), data.EditedAt)
	}
}

func TestOutboundFromEventError(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind:  core.EventError,
		Error: core.NewError(core.CodeNotMember, "not a member"),
	})
	if out.Type != proto.OutboundTypeError {
		t.Fatalf("expected error envelope, got %+v", out)
	}
	if out.Error == nil || out.Error.Code != "NOT_MEMBER" {
		t.Fatalf("unexpected error payload: %+v", out.Error)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal outbound: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal outbound: %v", err)
	}
	if _, ok := decoded["event"]; ok {
		t.Fatal("error envelopes must not carry an event name")
	}
}

func TestOutboundFromEventNotificationShapes(t *testing.T) {
	single := outboundFromEvent(&core.Event{
		Kind:         core.EventNewNotification,
		Notification: &store.Notification{ID: 1, Title: "hi", Type: "info"},
	})
	if _, ok := single.Data.(proto.NotificationData); !ok {
		t.Fatalf("expected single notification, got %T", single.Data)
	}

	list := outboundFromEvent(&core.Event{
		Kind:          core.EventNewNotification,
		Notifications: []*store.Notification{},
	})
	listData, ok := list.Data.(proto.NotificationListData)
	if !ok {
		t.Fatalf("expected notification list, got %T", list.Data)
	}
	if listData.Notifications == nil {
		t.Fatal("empty snapshot must serialize as an empty list, not null")
	}
}
