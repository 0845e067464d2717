package core

import "time"

const forceLogoutReason = "disconnected by administrator"

func (h *Hub) handleForceDisconnect(c *Conn, targetUserID int64) {
	if !c.Identity.Admin() {
		h.sendError(c, CodeForbidden, "administrative privilege required")
		return
	}

	conns := h.connsByUser[targetUserID]
	if len(conns) == 0 {
		h.sendError(c, CodeNotFound, "user has no live connections")
		return
	}

	// Actor and target must share an organization; any live connection
	// carries the target's identity.
	var targets []*Conn
	for tc := range conns {
		if tc.Identity.OrganizationID != c.Identity.OrganizationID {
			h.sendError(c, CodeInvalidOrg, "target belongs to a different organization")
			return
		}
		targets = append(targets, tc)
	}

	h.log.Info().
		Int64("actor_id", c.Identity.UserID).
		Int64("target_id", targetUserID).
		Int("connections", len(targets)).
		Msg("force disconnect")

	for _, tc := range targets {
		tc.send(&Event{
			Kind:   EventForceLogout,
			User:   targetUserID,
			Reason: forceLogoutReason,
			At:     time.Now(),
		})
		// Forced: the offline grace window does not apply.
		h.cleanupConn(tc, true)
	}
}

func (h *Hub) handleStats(c *Conn) {
	if !c.Identity.Admin() {
		h.sendError(c, CodeForbidden, "administrative privilege required")
		return
	}
	connections, activeChannels := h.reg.Counts()
	c.send(&Event{
		Kind: EventSystemStats,
		Stats: &StatsSnapshot{
			TotalConnections: connections,
			OnlineUsers:      len(h.reg.UsersOnlineIn(c.Identity.OrganizationID)),
			ActiveChannels:   activeChannels,
		},
		At: time.Now(),
	})
}
