package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Bridge is an optional publish/subscribe backbone for multi-process
// deployments. Broadcasts issued on one process are republished so that
// processes holding other connections of the same room can deliver them.
// Presence maps remain process-local; the bridge carries fan-out only.
type Bridge interface {
	Publish(ctx context.Context, room string, payload []byte) error
	// Subscribe registers a handler for a room's messages and returns a
	// cancel function.
	Subscribe(room string, handler func(payload []byte)) (cancel func(), err error)
}

// bridgeEnvelope is the wire format published over the bridge. Origin
// lets a process ignore its own publications.
type bridgeEnvelope struct {
	Origin string `json:"origin"`
	Room   string `json:"room"`
	Event  *Event `json:"event"`
}

func orgRoomKey(orgID int64) string {
	return fmt.Sprintf("org:%d", orgID)
}

func channelRoomKey(channelID int64) string {
	return fmt.Sprintf("channel:%d", channelID)
}

func userRoomKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func encodeEnvelope(origin, room string, ev *Event) ([]byte, error) {
	return json.Marshal(bridgeEnvelope{Origin: origin, Room: room, Event: ev})
}

func decodeEnvelope(payload []byte) (*bridgeEnvelope, error) {
	var env bridgeEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode bridge envelope: %w", err)
	}
	return &env, nil
}

// parseRoomKey splits "org:<id>" / "channel:<id>" back into its parts.
func parseRoomKey(key string) (kind string, id int64, err error) {
	idx := strings.IndexByte(key, ':')
	if idx <= 0 {
		return "", 0, fmt.Errorf("malformed room key %q", key)
	}
	kind = key[:idx]
	id, err = strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed room key %q: %w", key, err)
	}
	return kind, id, nil
}
