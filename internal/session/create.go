package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/content"
	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/role"
	"github.com/DoyleJ11/partybox-charades/internal/store"
)

// ErrCreateRoom is retryable by the user; CreateGame never retries on its own.
var ErrCreateRoom = errors.New("could not create room")

const (
	// No I/O or 0/1 so codes survive being read aloud across a room.
	CodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength      = 5
	maxCodeAttempts = 10

	DefaultCardCount     = 20
	DefaultRoundDuration = 60
)

func GenerateCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(CodeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = CodeAlphabet[num.Int64()]
	}
	return string(code), nil
}

type GameSetup struct {
	Topic         string
	TeamNames     []string
	RoundDuration int // seconds
	CardCount     int
}

// Created is what the creating device keeps: the room as written and the host key that
// proves it is the host. The key is never shared.
type Created struct {
	Room    engine.Room
	HostKey string
}

func (c Created) Join() role.Join {
	return role.Join{RoomID: c.Room.ID, Role: role.Host, HostKey: c.HostKey}
}

// CreateGame builds a fresh room from generated words and writes it under a new code.
// "Play again" is CreateGame with the same team names.
func CreateGame(ctx context.Context, s store.Store, words *content.Provider, setup GameSetup, log *zap.Logger) (Created, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if setup.CardCount <= 0 {
		setup.CardCount = DefaultCardCount
	}
	if setup.RoundDuration <= 0 {
		setup.RoundDuration = DefaultRoundDuration
	}

	code, err := uniqueCode(ctx, s, log)
	if err != nil {
		return Created{}, err
	}
	key, hash, err := role.NewHostKey()
	if err != nil {
		return Created{}, fmt.Errorf("%w: %w", ErrCreateRoom, err)
	}

	room, err := engine.NewRoom(engine.Setup{
		RoomID:        code,
		Category:      content.Category(setup.Topic),
		RoundDuration: setup.RoundDuration,
		TeamNames:     setup.TeamNames,
		Words:         words.Words(ctx, setup.Topic, setup.CardCount),
		HostKeyHash:   hash,
	})
	if err != nil {
		return Created{}, err
	}

	if !s.CreateRoom(ctx, room) {
		log.Warn("create room failed", zap.String("room", code))
		return Created{}, ErrCreateRoom
	}
	log.Info("room created", zap.String("room", code), zap.Int("cards", len(room.Cards)), zap.Int("teams", len(room.Teams)))
	return Created{Room: room, HostKey: key}, nil
}

func uniqueCode(ctx context.Context, s store.Store, log *zap.Logger) (string, error) {
	for range maxCodeAttempts {
		c, err := GenerateCode(CodeLength)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCreateRoom, err)
		}
		if !s.RoomExists(ctx, c) {
			return c, nil
		}
		log.Debug("collision on code, regenerating", zap.String("code", c))
	}
	return "", ErrCreateRoom
}
