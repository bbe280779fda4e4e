// Package ws streams a room's record to a device. The socket is read-only for the device:
// writes go through HTTP patches.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/store"
	"github.com/DoyleJ11/partybox-charades/internal/types"
)

const writeTimeout = 3 * time.Second

func Handler(s store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Devices join from anywhere a share link was opened.
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.CloseNow()

		// Reader: the device never sends anything we act on; this only notices it leaving.
		ctx := conn.CloseRead(r.Context())

		// Newest snapshot wins; a device that falls behind skips straight to it.
		updates := make(chan store.Snapshot, 1)
		unsubscribe := s.Subscribe(ctx, code, func(snap store.Snapshot) {
			for {
				select {
				case updates <- snap:
					return
				case <-ctx.Done():
					return
				default:
				}
				select {
				case <-updates:
				default:
				}
			}
		})
		defer unsubscribe()

		log := log.With(zap.String("room", code))
		log.Debug("subscriber connected")

		// Writer
		for {
			select {
			case <-ctx.Done():
				log.Debug("subscriber left")
				return
			case snap := <-updates:
				msg := types.ServerMessage{Type: types.MsgRoomSnapshot, Version: snap.Version, Room: snap.Room}
				if snap.Closed() {
					msg = types.ServerMessage{Type: types.MsgRoomClosed}
				}
				if err := write(ctx, conn, msg); err != nil {
					log.Debug("write failed", zap.Error(err))
					return
				}
				if snap.Closed() {
					conn.Close(websocket.StatusNormalClosure, "room closed")
					return
				}
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
