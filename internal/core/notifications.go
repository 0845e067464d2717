package core

import (
	"errors"
	"strings"

	"github.com/orgchat/orgchat-server/internal/store"
)

func (h *Hub) handleCreateNotification(c *Conn, cmd *Command) {
	if !c.Identity.Admin() {
		h.sendError(c, CodeForbidden, "administrative privilege required")
		return
	}
	if strings.TrimSpace(cmd.Title) == "" || cmd.Recipient == 0 {
		h.sendError(c, CodeInvalidPayload, "notification needs a recipient and a title")
		return
	}

	notifType := cmd.NotifType
	if notifType == "" {
		notifType = "info"
	}
	n, err := h.store.CreateNotification(h.ctx, &store.Notification{
		RecipientID: cmd.Recipient,
		Title:       cmd.Title,
		Message:     cmd.Body,
		Type:        notifType,
		Metadata:    cmd.Metadata,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("recipient_id", cmd.Recipient).Msg("persist notification")
		h.sendError(c, CodeServerError, "failed to persist notification")
		return
	}

	// Delivery is per-user, not per-room: it must reach a recipient with
	// zero open channels.
	h.notifyUser(n.RecipientID, &Event{
		Kind:         EventNewNotification,
		User:         n.RecipientID,
		Notification: n,
	})
}

func (h *Hub) handleSubscribeNotifications(c *Conn) {
	unread, err := h.store.ListUnreadNotifications(h.ctx, c.Identity.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", c.Identity.UserID).Msg("list notifications")
		h.sendError(c, CodeServerError, "failed to load notifications")
		return
	}
	if c.state == StateDisconnected {
		return
	}
	c.send(&Event{
		Kind:          EventNewNotification,
		User:          c.Identity.UserID,
		Notifications: unread,
	})
}

func (h *Hub) handleMarkNotificationRead(c *Conn, id int64) {
	n, err := h.store.GetNotification(h.ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.sendError(c, CodeNotFound, "notification not found")
			return
		}
		h.log.Error().Err(err).Int64("notification_id", id).Msg("load notification")
		h.sendError(c, CodeServerError, "failed to load notification")
		return
	}
	if n.RecipientID != c.Identity.UserID {
		h.sendError(c, CodeForbidden, "only the recipient may mark a notification read")
		return
	}
	if !n.IsRead {
		if err := h.store.MarkNotificationRead(h.ctx, n.ID); err != nil {
			h.log.Error().Err(err).Int64("notification_id", n.ID).Msg("mark notification read")
			h.sendError(c, CodeServerError, "failed to mark notification read")
			return
		}
		n.IsRead = true
	}

	// Confirm on every device of the recipient so badges stay in sync.
	h.notifyUser(n.RecipientID, &Event{
		Kind:         EventNotificationRead,
		User:         n.RecipientID,
		Notification: n,
	})
}
