package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/orgchat/orgchat-server/internal/store"
)

const (
	defaultFetchLimit = 50
	maxFetchLimit     = 200
	previewRunes      = 80
)

func (h *Hub) handleSendMessage(c *Conn, cmd *Command) {
	body := strings.TrimSpace(cmd.Body)
	if body == "" && len(cmd.Attachments) == 0 {
		h.sendError(c, CodeInvalidPayload, "message needs a body or attachments")
		return
	}

	ch, cerr := h.loadChannel(c.Identity, cmd.Channel, true)
	if cerr != nil {
		h.sendError(c, cerr.Code, cerr.Message)
		return
	}

	// The sender has implicitly read their own message.
	msg, err := h.store.CreateMessage(h.ctx, &store.Message{
		OrganizationID: ch.OrganizationID,
		ChannelID:      ch.ID,
		SenderID:       c.Identity.UserID,
		Body:           body,
		Attachments:    cmd.Attachments,
		ReadBy:         []int64{c.Identity.UserID},
	})
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", ch.ID).Msg("persist message")
		h.sendError(c, CodeServerError, "failed to persist message")
		return
	}

	view := &MessageView{Message: *msg, SenderName: c.Identity.DisplayName}
	h.broadcastChannel(ch.ID, &Event{
		Kind:    EventNewMessage,
		Channel: ch.ID,
		Message: view,
	})

	// Activity digest to the org room so unopened channels can show an
	// indicator without every client joining every room.
	h.broadcastOrg(ch.OrganizationID, &Event{
		Kind:    EventChannelActivity,
		Org:     ch.OrganizationID,
		Channel: ch.ID,
		User:    c.Identity.UserID,
		Preview: preview(body),
		At:      msg.CreatedAt,
	})
}

func (h *Hub) handleEditMessage(c *Conn, cmd *Command) {
	body := strings.TrimSpace(cmd.Body)
	if body == "" {
		h.sendError(c, CodeInvalidPayload, "edited body must not be empty")
		return
	}

	msg, cerr := h.loadMessage(cmd.MessageID)
	if cerr != nil {
		h.sendError(c, cerr.Code, cerr.Message)
		return
	}
	if msg.SenderID != c.Identity.UserID {
		h.sendError(c, CodeForbidden, "only the sender may edit a message")
		return
	}
	if msg.OrganizationID != c.Identity.OrganizationID {
		h.sendError(c, CodeInvalidOrg, "message belongs to a different organization")
		return
	}

	editedAt := time.Now().UTC()
	if err := h.store.UpdateMessageBody(h.ctx, msg.ID, body, editedAt); err != nil {
		h.log.Error().Err(err).Int64("message_id", msg.ID).Msg("update message")
		h.sendError(c, CodeServerError, "failed to update message")
		return
	}

	msg.Body = body
	msg.EditedAt = &editedAt
	h.broadcastChannel(msg.ChannelID, &Event{
		Kind:    EventMessageEdited,
		Channel: msg.ChannelID,
		Message: &MessageView{Message: *msg, SenderName: c.Identity.DisplayName},
	})
}

func (h *Hub) handleDeleteMessage(c *Conn, cmd *Command) {
	msg, cerr := h.loadMessage(cmd.MessageID)
	if cerr != nil {
		h.sendError(c, cerr.Code, cerr.Message)
		return
	}
	if msg.OrganizationID != c.Identity.OrganizationID {
		h.sendError(c, CodeInvalidOrg, "message belongs to a different organization")
		return
	}
	if msg.SenderID != c.Identity.UserID && !c.Identity.Admin() {
		h.sendError(c, CodeForbidden, "only the sender or an admin may delete a message")
		return
	}

	if err := h.store.SoftDeleteMessage(h.ctx, msg.ID); err != nil {
		h.log.Error().Err(err).Int64("message_id", msg.ID).Msg("delete message")
		h.sendError(c, CodeServerError, "failed to delete message")
		return
	}

	// Content is already erased; the event carries identifiers only.
	h.broadcastChannel(msg.ChannelID, &Event{
		Kind:       EventMessageDeleted,
		Channel:    msg.ChannelID,
		MessageIDs: []int64{msg.ID},
	})
}

func (h *Hub) handleMarkRead(c *Conn, cmd *Command) {
	ch, cerr := h.loadChannel(c.Identity, cmd.Channel, false)
	if cerr != nil {
		h.sendError(c, cerr.Code, cerr.Message)
		return
	}

	affected, err := h.store.MarkMessagesRead(h.ctx, ch.ID, c.Identity.UserID, cmd.MessageIDs)
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", ch.ID).Msg("mark read")
		h.sendError(c, CodeServerError, "failed to mark messages read")
		return
	}
	if len(affected) == 0 {
		return
	}

	// Other participants update their "seen by" indicators; the reader
	// already knows.
	h.broadcastChannel(ch.ID, &Event{
		Kind:       EventReadReceipt,
		Channel:    ch.ID,
		User:       c.Identity.UserID,
		MessageIDs: affected,
		At:         time.Now(),
	}, c)
}

func (h *Hub) handleFetchMessages(c *Conn, cmd *Command) {
	ch, cerr := h.loadChannel(c.Identity, cmd.Channel, false)
	if cerr != nil {
		h.sendError(c, cerr.Code, cerr.Message)
		return
	}

	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}

	messages, err := h.store.ListMessages(h.ctx, ch.ID, store.MessagePage{Before: cmd.Before, Limit: limit})
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", ch.ID).Msg("list messages")
		h.sendError(c, CodeServerError, "failed to load messages")
		return
	}

	views := make([]*MessageView, 0, len(messages))
	names := make(map[int64]string)
	for _, m := range messages {
		name, ok := names[m.SenderID]
		if !ok {
			if u, err := h.store.GetUserByID(h.ctx, m.SenderID); err == nil {
				name = u.DisplayName
			}
			names[m.SenderID] = name
		}
		views = append(views, &MessageView{Message: *m, SenderName: name})
	}

	// History goes to the requesting connection only; re-check it is
	// still registered after the store round-trips.
	if c.state == StateDisconnected {
		return
	}
	c.send(&Event{
		Kind:     EventMessageHistory,
		Channel:  ch.ID,
		Messages: views,
	})
}

func (h *Hub) loadMessage(id int64) (*store.Message, *Error) {
	msg, err := h.store.GetMessage(h.ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewError(CodeMessageNotFound, "message not found")
		}
		h.log.Error().Err(err).Int64("message_id", id).Msg("load message")
		return nil, NewError(CodeServerError, "failed to load message")
	}
	if msg.Deleted {
		return nil, NewError(CodeMessageNotFound, "message not found")
	}
	return msg, nil
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewRunes {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewRunes])
}
