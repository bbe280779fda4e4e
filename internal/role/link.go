package role

import (
	"errors"
	"fmt"
	"net/url"
)

var ErrBadLink = errors.New("link has no room code")

// Link builds a share link. Only player and spectator links are meant to be shared; the
// host key is never part of a link.
func Link(base, roomID string, r Role) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("gameId", roomID)
	q.Set("role", string(r))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func ParseLink(raw string) (Join, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Join{}, fmt.Errorf("parse link: %w", err)
	}
	q := u.Query()
	code := q.Get("gameId")
	if code == "" {
		return Join{}, ErrBadLink
	}
	return Join{RoomID: code, Role: Parse(q.Get("role"))}, nil
}
