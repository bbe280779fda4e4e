package remote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/store"
	"github.com/DoyleJ11/partybox-charades/internal/types"
)

var errRoomClosed = errors.New("room closed")

// Subscribe keeps a socket to the relay open and redials when it drops. The relay sends
// the whole record on every (re)connect, so nothing is missed across a reconnect.
func (c *Client) Subscribe(ctx context.Context, roomID string, onChange func(store.Snapshot)) func() {
	ctx, cancel := context.WithCancel(ctx)
	log := c.log.With(zap.String("room", roomID))

	go func() {
		defer cancel()
		backoff := c.minBackoff
		last := -1

		for {
			err := c.stream(ctx, roomID, func(s store.Snapshot) {
				backoff = c.minBackoff
				if !s.Closed() && s.Version == last {
					return
				}
				last = s.Version
				if ctx.Err() == nil {
					onChange(s)
				}
			})
			if errors.Is(err, errRoomClosed) || ctx.Err() != nil {
				return
			}
			log.Warn("subscription dropped, redialing", zap.Error(err), zap.Duration("backoff", backoff))

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.maxBackoff)
		}
	}()
	return cancel
}

func (c *Client) stream(ctx context.Context, roomID string, deliver func(store.Snapshot)) error {
	// Dial refuses clients with a Timeout; the context bounds it instead.
	hc := *c.http
	hc.Timeout = 0
	conn, _, err := websocket.Dial(ctx, c.wsURL(roomID), &websocket.DialOptions{HTTPClient: &hc})
	if err != nil {
		return err
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var msg types.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("bad frame from relay", zap.Error(err))
			continue
		}
		switch msg.Type {
		case types.MsgRoomSnapshot:
			if msg.Room == nil {
				continue
			}
			deliver(store.Snapshot{Version: msg.Version, Room: msg.Room})
		case types.MsgRoomClosed:
			deliver(store.Snapshot{})
			conn.Close(websocket.StatusNormalClosure, "")
			return errRoomClosed
		case types.MsgError:
			c.log.Warn("relay error", zap.String("error", msg.Error))
		}
	}
}
