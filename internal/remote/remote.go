// Package remote is the device-side store: the relay's HTTP routes for reads and writes,
// and its websocket for change notifications.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/store"
	"github.com/DoyleJ11/partybox-charades/internal/types"
)

var ErrRateLimited = errors.New("relay rate limited the write")

type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger

	// reconnect backoff bounds for Subscribe
	minBackoff, maxBackoff time.Duration
}

var _ store.Store = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLogger(log *zap.Logger) Option { return func(c *Client) { c.log = log } }

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("relay url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:       u,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        zap.NewNop(),
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) roomURL(roomID string) string {
	return c.base.JoinPath("rooms", roomID).String()
}

func (c *Client) do(ctx context.Context, method, target string, body any, header http.Header) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func (c *Client) CreateRoom(ctx context.Context, room engine.Room) bool {
	resp, err := c.do(ctx, http.MethodPost, c.base.JoinPath("rooms").String(), room, nil)
	if err != nil {
		c.log.Warn("create room", zap.String("room", room.ID), zap.Error(err))
		return false
	}
	defer drain(resp)
	return resp.StatusCode == http.StatusCreated
}

func (c *Client) RoomExists(ctx context.Context, roomID string) bool {
	resp, err := c.do(ctx, http.MethodHead, c.roomURL(roomID), nil, nil)
	if err != nil {
		c.log.Warn("room exists", zap.String("room", roomID), zap.Error(err))
		return false
	}
	defer drain(resp)
	return resp.StatusCode == http.StatusOK
}

func (c *Client) Get(ctx context.Context, roomID string) (store.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, c.roomURL(roomID), nil, nil)
	if err != nil {
		return store.Snapshot{}, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return store.Snapshot{}, store.ErrRoomNotFound
	default:
		return store.Snapshot{}, fmt.Errorf("get room %s: relay answered %s", roomID, resp.Status)
	}

	var env types.RoomEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return store.Snapshot{Version: env.Version, Room: env.Room}, nil
}

func (c *Client) Patch(ctx context.Context, roomID string, p store.Patch) {
	resp, err := c.do(ctx, http.MethodPatch, c.roomURL(roomID), p, nil)
	if err != nil {
		c.log.Warn("patch room", zap.String("room", roomID), zap.Error(err))
		return
	}
	drain(resp)
}

func (c *Client) PatchIfVersion(ctx context.Context, roomID string, version int, p store.Patch) error {
	h := http.Header{}
	h.Set("If-Match", strconv.Itoa(version))
	resp, err := c.do(ctx, http.MethodPatch, c.roomURL(roomID), p, h)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusPreconditionFailed:
		return store.ErrVersionConflict
	case http.StatusNotFound:
		return store.ErrRoomNotFound
	case http.StatusBadRequest:
		return store.ErrInvalidPatch
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("patch room %s: relay answered %s", roomID, resp.Status)
	}
}

func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.roomURL(roomID), nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete room %s: relay answered %s", roomID, resp.Status)
	}
	return nil
}

func (c *Client) wsURL(roomID string) string {
	u := *c.base
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u = *u.JoinPath("ws")
	u.RawQuery = url.Values{"code": {roomID}}.Encode()
	return u.String()
}
