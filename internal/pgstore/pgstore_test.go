package pgstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/pgstore"
	"github.com/DoyleJ11/partybox-charades/internal/store"
)

var repo *pgstore.Store

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := startContainer(func() (*postgres.PostgresContainer, error) {
		return postgres.Run(ctx,
			"postgres:16-alpine3.22",
			postgres.WithDatabase("testdb"),
			postgres.WithUsername("testusername"),
			postgres.WithPassword("testpassword"),
			testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(30*time.Second)),
		)
	})
	if err != nil {
		// no docker: the tests below skip
		fmt.Fprintln(os.Stderr, "pgstore: postgres container unavailable:", err)
		os.Exit(m.Run())
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	repo, err = pgstore.Open(ctx, connString, zap.NewNop())
	if err != nil {
		panic(err)
	}

	code := m.Run()

	// Cleanup
	_ = repo.Close()
	_ = postgresContainer.Terminate(ctx)
	os.Exit(code)
}

// startContainer turns a testcontainers panic (no docker host) into an error.
func startContainer(run func() (*postgres.PostgresContainer, error)) (c *postgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("start container: %v", r)
		}
	}()
	return run()
}

func needRepo(t *testing.T) {
	t.Helper()
	if repo == nil {
		t.Skip("postgres container not available")
	}
}

func newRoom(t *testing.T, id string) engine.Room {
	t.Helper()
	room, err := engine.NewRoom(engine.Setup{
		RoomID:        id,
		RoundDuration: 30,
		TeamNames:     []string{"A", "B"},
		Words:         []string{"one", "two", "three"},
	})
	require.NoError(t, err)
	return room
}

func TestStartContainer_RecoversPanic(t *testing.T) {
	c, err := startContainer(func() (*postgres.PostgresContainer, error) {
		panic("rootless Docker not found")
	})
	assert.Nil(t, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rootless Docker not found")

	boom := errors.New("boom")
	_, err = startContainer(func() (*postgres.PostgresContainer, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestPostgresStore(t *testing.T) {
	needRepo(t)
	ctx := context.Background()

	t.Run("CreateRoom", func(t *testing.T) {
		assert.True(t, repo.CreateRoom(ctx, newRoom(t, "PGA1")))
		assert.True(t, repo.RoomExists(ctx, "PGA1"))
	})

	t.Run("CreateRoom_Duplicate", func(t *testing.T) {
		assert.False(t, repo.CreateRoom(ctx, newRoom(t, "PGA1")))
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := repo.Get(ctx, "GHOST")
		assert.ErrorIs(t, err, store.ErrRoomNotFound)
		assert.False(t, repo.RoomExists(ctx, "GHOST"))
	})

	t.Run("PatchIfVersion", func(t *testing.T) {
		snap, err := repo.Get(ctx, "PGA1")
		require.NoError(t, err)
		require.Equal(t, 0, snap.Version)

		require.NoError(t, repo.PatchIfVersion(ctx, "PGA1", 0, store.Patch{"category": json.RawMessage(`"Animals"`)}))
		err = repo.PatchIfVersion(ctx, "PGA1", 0, store.Patch{"category": json.RawMessage(`"Jobs"`)})
		assert.ErrorIs(t, err, store.ErrVersionConflict)

		snap, err = repo.Get(ctx, "PGA1")
		require.NoError(t, err)
		assert.Equal(t, 1, snap.Version)
		assert.Equal(t, "Animals", snap.Room.Category)
		assert.Len(t, snap.Room.Cards, 3, "unpatched fields survive")
	})

	t.Run("Patch_InvalidAndMissing", func(t *testing.T) {
		err := repo.PatchIfVersion(ctx, "PGA1", 1, store.Patch{"teams": json.RawMessage(`7`)})
		assert.ErrorIs(t, err, store.ErrInvalidPatch)

		repo.Patch(ctx, "GHOST", store.Patch{"category": json.RawMessage(`"x"`)})
		assert.False(t, repo.RoomExists(ctx, "GHOST"))
	})
}

func TestPostgresStore_RacingPicks(t *testing.T) {
	needRepo(t)
	ctx := context.Background()
	require.True(t, repo.CreateRoom(ctx, newRoom(t, "RACE")))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = store.Update(ctx, repo, "RACE", func(r engine.Room) (engine.Room, error) {
				_, next, err := engine.Apply(r, engine.PickCard(fmt.Sprintf("c%d", i), actor, time.Now()))
				return next, err
			})
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, engine.ErrIllegalCommand)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	snap, err := repo.Get(ctx, "RACE")
	require.NoError(t, err)
	assert.NoError(t, engine.CheckInvariants(*snap.Room))
}

func TestPostgresStore_Subscribe(t *testing.T) {
	needRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, repo.CreateRoom(ctx, newRoom(t, "SUB1")))

	got := make(chan store.Snapshot, 8)
	unsubscribe := repo.Subscribe(ctx, "SUB1", func(s store.Snapshot) { got <- s })
	defer unsubscribe()

	recv := func() store.Snapshot {
		select {
		case s := <-got:
			return s
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return store.Snapshot{}
		}
	}

	first := recv()
	require.False(t, first.Closed())
	assert.Equal(t, 0, first.Version)

	repo.Patch(ctx, "SUB1", store.Patch{"currentTeamIndex": json.RawMessage("1")})
	next := recv()
	assert.Equal(t, 1, next.Version)
	assert.Equal(t, 1, next.Room.CurrentTeamIndex)

	require.NoError(t, repo.DeleteRoom(ctx, "SUB1"))
	assert.True(t, recv().Closed())
}

func TestPostgresStore_Reap(t *testing.T) {
	needRepo(t)
	ctx := context.Background()
	require.True(t, repo.CreateRoom(ctx, newRoom(t, "OLD1")))

	n, err := repo.Reap(ctx, -time.Minute) // everything is older than a minute from now
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	assert.False(t, repo.RoomExists(ctx, "OLD1"))
}
