package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateRoom(ctx context.Context, room engine.Room) bool {
	return m.Called(ctx, room).Bool(0)
}

func (m *MockStore) RoomExists(ctx context.Context, roomID string) bool {
	return m.Called(ctx, roomID).Bool(0)
}

func (m *MockStore) Get(ctx context.Context, roomID string) (Snapshot, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(Snapshot), args.Error(1)
}

func (m *MockStore) Patch(ctx context.Context, roomID string, p Patch) {
	m.Called(ctx, roomID, p)
}

func (m *MockStore) PatchIfVersion(ctx context.Context, roomID string, version int, p Patch) error {
	return m.Called(ctx, roomID, version, p).Error(0)
}

func (m *MockStore) Subscribe(ctx context.Context, roomID string, onChange func(Snapshot)) func() {
	return m.Called(ctx, roomID, onChange).Get(0).(func())
}

func pick(r engine.Room) (engine.Room, error) {
	_, next, err := engine.Apply(r, engine.PickCard("c0", "a", time.UnixMilli(0)))
	return next, err
}

func TestUpdate_WritesDiffAtReadVersion(t *testing.T) {
	ctx := context.Background()
	r := room(t)
	m := &MockStore{}
	m.On("Get", ctx, "PTCH").Return(Snapshot{Version: 7, Room: &r}, nil)
	m.On("PatchIfVersion", ctx, "PTCH", 7, mock.MatchedBy(func(p Patch) bool {
		_, hasPhase := p["phase"]
		_, hasTeams := p["teams"]
		return hasPhase && !hasTeams
	})).Return(nil)

	next, err := Update(ctx, m, "PTCH", pick)
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseActing, next.Phase)
	m.AssertExpectations(t)
}

func TestUpdate_RetriesOnConflictThenDropsIllegal(t *testing.T) {
	ctx := context.Background()
	board := room(t)
	acting, err := pick(board)
	require.NoError(t, err)

	m := &MockStore{}
	m.On("Get", ctx, "PTCH").Return(Snapshot{Version: 1, Room: &board}, nil).Once()
	m.On("PatchIfVersion", ctx, "PTCH", 1, mock.Anything).Return(ErrVersionConflict).Once()
	m.On("Get", ctx, "PTCH").Return(Snapshot{Version: 2, Room: &acting}, nil).Once()

	_, err = Update(ctx, m, "PTCH", pick)
	assert.ErrorIs(t, err, engine.ErrWrongPhase)
	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "PatchIfVersion", 1)
}

func TestUpdate_GivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	r := room(t)
	m := &MockStore{}
	m.On("Get", ctx, "PTCH").Return(Snapshot{Version: 1, Room: &r}, nil)
	m.On("PatchIfVersion", ctx, "PTCH", 1, mock.Anything).Return(ErrVersionConflict)

	_, err := Update(ctx, m, "PTCH", pick)
	assert.ErrorIs(t, err, ErrTooManyConflicts)
	m.AssertNumberOfCalls(t, "Get", MaxUpdateAttempts)
}

func TestUpdate_NoChangeSkipsWrite(t *testing.T) {
	ctx := context.Background()
	r := room(t)
	m := &MockStore{}
	m.On("Get", ctx, "PTCH").Return(Snapshot{Version: 1, Room: &r}, nil)

	_, err := Update(ctx, m, "PTCH", func(r engine.Room) (engine.Room, error) { return r, nil })
	require.NoError(t, err)
	m.AssertNotCalled(t, "PatchIfVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_MissingRoom(t *testing.T) {
	ctx := context.Background()
	m := &MockStore{}
	m.On("Get", ctx, "NONE").Return(Snapshot{}, ErrRoomNotFound)

	_, err := Update(ctx, m, "NONE", pick)
	assert.True(t, errors.Is(err, ErrRoomNotFound))
}
