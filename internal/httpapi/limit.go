package httpapi

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

const maxTrackedRooms = 4096

// roomLimits caps patch traffic per room code; all devices in a room share one bucket.
type roomLimits struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	rooms map[string]*rate.Limiter
}

func newRoomLimits(perSecond float64, burst int) *roomLimits {
	if burst <= 0 {
		burst = 1
	}
	return &roomLimits{limit: rate.Limit(perSecond), burst: burst, rooms: make(map[string]*rate.Limiter)}
}

func (l *roomLimits) get(code string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.rooms[code]; ok {
		return lim
	}
	if len(l.rooms) >= maxTrackedRooms {
		// forget rooms whose bucket has refilled; they lose nothing
		for c, lim := range l.rooms {
			if lim.Tokens() >= float64(l.burst) {
				delete(l.rooms, c)
			}
		}
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.rooms[code] = lim
	return lim
}

func (l *roomLimits) middleware(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(chi.URLParam(r, "code")).Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many writes", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
