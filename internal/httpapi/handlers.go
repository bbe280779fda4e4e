package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/store"
	"github.com/DoyleJ11/partybox-charades/internal/types"
)

const maxBodyBytes = 256 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func CreateRoom(s RoomStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var room engine.Room
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&room); err != nil {
			http.Error(w, "invalid room body", http.StatusBadRequest)
			return
		}
		if room.ID == "" {
			http.Error(w, "missing roomId", http.StatusBadRequest)
			return
		}
		if !s.CreateRoom(r.Context(), room) {
			// soft failure: either taken or the store refused
			http.Error(w, "could not create room", http.StatusConflict)
			return
		}
		log.Info("room created", zap.String("room", room.ID))
		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: room.ID})
	}
}

func RoomExists(s RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.RoomExists(r.Context(), chi.URLParam(r, "code")) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func GetRoom(s RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.Get(r.Context(), chi.URLParam(r, "code"))
		switch {
		case errors.Is(err, store.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "could not read room", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, types.RoomEnvelope{Version: snap.Version, Room: snap.Room})
	}
}

// PatchRoom merges the body into the record. With If-Match the write only lands if the
// record is still at that version.
func PatchRoom(s RoomStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		var p store.Patch
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p); err != nil {
			http.Error(w, "invalid patch body", http.StatusBadRequest)
			return
		}

		match := r.Header.Get("If-Match")
		if match == "" {
			s.Patch(r.Context(), code, p)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		version, err := strconv.Atoi(match)
		if err != nil || version < 0 {
			http.Error(w, "invalid If-Match version", http.StatusBadRequest)
			return
		}

		err = s.PatchIfVersion(r.Context(), code, version, p)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, store.ErrVersionConflict):
			http.Error(w, "room changed", http.StatusPreconditionFailed)
		case errors.Is(err, store.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
		case errors.Is(err, store.ErrInvalidPatch):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Warn("conditional patch", zap.String("room", code), zap.Error(err))
			http.Error(w, "could not write room", http.StatusInternalServerError)
		}
	}
}

func DeleteRoom(s RoomStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if err := s.DeleteRoom(r.Context(), code); err != nil {
			log.Warn("delete room", zap.String("room", code), zap.Error(err))
			http.Error(w, "could not delete room", http.StatusInternalServerError)
			return
		}
		log.Info("room deleted", zap.String("room", code))
		w.WriteHeader(http.StatusNoContent)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
