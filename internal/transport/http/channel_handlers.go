package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/orgchat/orgchat-server/internal/store"
)

// ChannelHandlers provides HTTP handlers for channel administration. The
// records written here are the durable channels the realtime core reads
// on every join and post.
type ChannelHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(st store.Store, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{store: st, log: logger}
}

// CreateChannelRequest represents the create channel request body.
type CreateChannelRequest struct {
	Name    string  `json:"name" binding:"required,min=1,max=64"`
	Type    string  `json:"type"`
	Members []int64 `json:"members"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID        int64   `json:"id"`
	OrgID     int64   `json:"org_id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	IsActive  bool    `json:"is_active"`
	Members   []int64 `json:"members,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// MemberRequest adds or removes a channel member.
type MemberRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// CreateChannel handles channel creation in the caller's organization.
// POST /api/channels
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	orgID, userID, ok := identityFromContext(c)
	if !ok {
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	chType := store.ChannelType(req.Type)
	switch chType {
	case "":
		chType = store.ChannelTypePublic
	case store.ChannelTypePublic, store.ChannelTypePrivate, store.ChannelTypeDirect:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel type"})
		return
	}

	members := make(map[int64]struct{}, len(req.Members)+1)
	if chType != store.ChannelTypePublic {
		// The creator is always a member of a non-public channel.
		members[userID] = struct{}{}
		for _, id := range req.Members {
			members[id] = struct{}{}
		}
	}

	channel, err := h.store.CreateChannel(c.Request.Context(), &store.Channel{
		OrganizationID: orgID,
		Name:           req.Name,
		Type:           chType,
		IsActive:       true,
		Members:        members,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "channel with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("channel_name", req.Name).Msg("failed to create channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("channel_name", channel.Name).Int64("channel_id", channel.ID).Int64("org_id", orgID).Msg("channel created")
	c.JSON(http.StatusCreated, channelResponse(channel))
}

// ListChannels handles listing channels visible to the caller.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	orgID, userID, ok := identityFromContext(c)
	if !ok {
		return
	}

	channels, err := h.store.ListChannels(c.Request.Context(), orgID, userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChannelResponse, 0, len(channels))
	for _, channel := range channels {
		response = append(response, channelResponse(channel))
	}
	c.JSON(http.StatusOK, response)
}

// AddMember adds a user to a channel's member set.
// POST /api/channels/:id/members
func (h *ChannelHandlers) AddMember(c *gin.Context) {
	h.mutateMember(c, h.store.AddChannelMember)
}

// RemoveMember removes a user from a channel's member set. Takes effect
// on the target's next channel action; live access checks read the store
// fresh every time.
// DELETE /api/channels/:id/members
func (h *ChannelHandlers) RemoveMember(c *gin.Context) {
	h.mutateMember(c, h.store.RemoveChannelMember)
}

func (h *ChannelHandlers) mutateMember(c *gin.Context, mutate func(ctx context.Context, channelID, userID int64) error) {
	orgID, _, ok := identityFromContext(c)
	if !ok {
		return
	}

	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	channel, err := h.store.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to load channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if channel.OrganizationID != orgID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "channel belongs to a different organization"})
		return
	}

	if err := mutate(c.Request.Context(), channelID, req.UserID); err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Int64("user_id", req.UserID).Msg("failed to update membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func channelResponse(channel *store.Channel) ChannelResponse {
	resp := ChannelResponse{
		ID:        channel.ID,
		OrgID:     channel.OrganizationID,
		Name:      channel.Name,
		Type:      string(channel.Type),
		IsActive:  channel.IsActive,
		CreatedAt: channel.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for id := range channel.Members {
		resp.Members = append(resp.Members, id)
	}
	return resp
}

// identityFromContext pulls the authenticated org and user from the gin
// context set by AuthMiddleware.
func identityFromContext(c *gin.Context) (orgID, userID int64, ok bool) {
	orgVal, orgOK := c.Get(ContextKeyOrgID)
	userVal, userOK := c.Get(ContextKeyUserID)
	if !orgOK || !userOK {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return 0, 0, false
	}
	orgID, orgOK = orgVal.(int64)
	userID, userOK = userVal.(int64)
	if !orgOK || !userOK {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return 0, 0, false
	}
	return orgID, userID, true
}
