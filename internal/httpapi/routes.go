// Package httpapi is the relay: a thin HTTP face over a room store. It holds no game
// rules; devices run the engine and send patches.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/store"
	"github.com/DoyleJ11/partybox-charades/internal/ws"
)

// RoomStore is a store the relay may also delete from.
type RoomStore interface {
	store.Store
	DeleteRoom(ctx context.Context, roomID string) error
}

type Options struct {
	Log        *zap.Logger
	WriteRate  float64 // patches per second per room, zero disables limiting
	WriteBurst int
}

func SetupRoutes(s RoomStore, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-Match"},
		MaxAge:         300,
	}))

	// The socket outlives any request timeout.
	r.Get("/ws", ws.Handler(s, log))
	r.Get("/healthz", Healthz)

	limits := newRoomLimits(opts.WriteRate, opts.WriteBurst)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Post("/rooms", CreateRoom(s, log))
		r.Route("/rooms/{code}", func(r chi.Router) {
			r.Head("/", RoomExists(s))
			r.Get("/", GetRoom(s))
			r.With(limits.middleware).Patch("/", PatchRoom(s, log))
			r.Delete("/", DeleteRoom(s, log))
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
