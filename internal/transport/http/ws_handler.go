package http

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orgchat/orgchat-server/internal/auth"
	"github.com/orgchat/orgchat-server/internal/core"
	"github.com/orgchat/orgchat-server/internal/proto"
)

// WSHandler upgrades HTTP connections, runs the identity gate and bridges
// the session to a core.Conn.
type WSHandler struct {
	hub          *core.Hub
	gate         *auth.Gate
	idleTimeout  time.Duration
	pingInterval time.Duration
	msgsPerMin   int
	log          *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, gate *auth.Gate, idleTimeout, pingInterval time.Duration, msgsPerMin int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:          hub,
		gate:         gate,
		idleTimeout:  idleTimeout,
		pingInterval: pingInterval,
		msgsPerMin:   msgsPerMin,
		log:          logger,
	}
}

// Handle serves GET /ws. The credential is taken from the token query
// parameter or the Authorization header; the gate runs exactly once and
// a failed handshake never reaches the hub.
func (h *WSHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}

	identity, gateErr := h.gate.Authenticate(ctx, token)
	if gateErr != nil {
		// Auth errors are fatal to the connection attempt; the code is
		// delivered over the socket so clients can react to
		// TOKEN_EXPIRED without a full re-login.
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = wsjson.Write(writeCtx, conn, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: string(gateErr.Code), Msg: gateErr.Message},
		})
		conn.Close(websocket.StatusPolicyViolation, string(gateErr.Code))
		return
	}

	client := core.NewConn(uuid.NewString(), identity)
	h.hub.RegisterConn(client)
	defer h.hub.UnregisterConn(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn) error {
	limiter := newRateLimiter(h.msgsPerMin)
	limiter.startReset(ctx.Done())

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			h.log.Warn().Str("conn_id", client.ID).Msg("inbound rate limit exceeded")
			conn.Close(websocket.StatusPolicyViolation, "rate limit exceeded")
			return nil
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("failed to map inbound")
			return err
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		if cmd != nil {
			select {
			case client.Commands <- cmd:
			case <-client.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ticker.C:
			// Unresponsive clients are forced to Disconnected once the
			// idle timeout elapses without a pong.
			pingCtx, cancel := context.WithTimeout(ctx, h.idleTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-client.Done():
			// The hub tore the connection down (disconnect or forced
			// logout); flush anything still buffered, then exit.
			for {
				select {
				case event := <-client.Events:
					if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
