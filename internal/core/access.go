package core

import (
	"errors"
	"fmt"

	"github.com/orgchat/orgchat-server/internal/store"
)

// loadChannel fetches the channel fresh from the store and applies the
// access rules for the identity. Membership can change between a user's
// connect and a later action, so nothing here is cached. forPost adds
// the is-active check that join does not require.
func (h *Hub) loadChannel(id Identity, channelID int64, forPost bool) (*store.Channel, *Error) {
	ch, err := h.store.GetChannel(h.ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewError(CodeChannelNotFound, fmt.Sprintf("channel %d not found", channelID))
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("load channel")
		return nil, NewError(CodeServerError, "failed to load channel")
	}

	if ch.OrganizationID != id.OrganizationID {
		return nil, NewError(CodeInvalidOrg, "channel belongs to a different organization")
	}
	if forPost && !ch.IsActive {
		return nil, NewError(CodeChannelDisabled, "channel is disabled")
	}
	if ch.Type != store.ChannelTypePublic && !ch.IsMember(id.UserID) {
		return nil, NewError(CodeNotMember, "not a member of this channel")
	}
	return ch, nil
}
