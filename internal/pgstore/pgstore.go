// Package pgstore keeps room records in PostgreSQL so a relay can restart, or run as
// several processes, without losing games. Row writes go through gorm; change fan-out uses
// LISTEN/NOTIFY on a dedicated pgx connection.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/store"
)

const notifyChannel = "room_changes"

type roomRow struct {
	ID        string         `gorm:"primaryKey;size:16"`
	Version   int            `gorm:"not null;default:0"`
	Data      datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"index"`
}

func (roomRow) TableName() string { return "rooms" }

type Store struct {
	db   *gorm.DB
	pool *pgxpool.Pool
	log  *zap.Logger

	mu   sync.Mutex
	subs map[string]map[string]chan struct{} // room -> subscription -> wake-up

	cancel context.CancelFunc
	done   chan struct{}
}

var _ store.Store = (*Store)(nil)

// Open connects, migrates the rooms table and starts listening for changes.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&roomRow{}); err != nil {
		return nil, fmt.Errorf("migrate rooms: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	lctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:     db,
		pool:   pool,
		log:    log.With(zap.String("store", "postgres")),
		subs:   make(map[string]map[string]chan struct{}),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listen(lctx)
	return s, nil
}

func (s *Store) Close() error {
	s.cancel()
	<-s.done
	s.pool.Close()

	var errs error
	sqlDB, err := s.db.DB()
	errs = multierr.Append(errs, err)
	if sqlDB != nil {
		errs = multierr.Append(errs, sqlDB.Close())
	}
	return errs
}

func (s *Store) CreateRoom(ctx context.Context, room engine.Room) bool {
	doc, err := store.Encode(room)
	if err != nil {
		s.log.Warn("encode room", zap.String("room", room.ID), zap.Error(err))
		return false
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&roomRow{ID: room.ID, Data: datatypes.JSON(doc), UpdatedAt: time.Now()})
	if res.Error != nil {
		s.log.Warn("create room", zap.String("room", room.ID), zap.Error(res.Error))
		return false
	}
	return res.RowsAffected == 1
}

func (s *Store) RoomExists(ctx context.Context, roomID string) bool {
	var n int64
	if err := s.db.WithContext(ctx).Model(&roomRow{}).Where("id = ?", roomID).Count(&n).Error; err != nil {
		s.log.Warn("room exists", zap.String("room", roomID), zap.Error(err))
		return false
	}
	return n > 0
}

func (s *Store) Get(ctx context.Context, roomID string) (store.Snapshot, error) {
	var row roomRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", roomID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.Snapshot{}, store.ErrRoomNotFound
	case err != nil:
		return store.Snapshot{}, err
	}
	room, err := store.Decode([]byte(row.Data))
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return store.Snapshot{Version: row.Version, Room: room}, nil
}

func (s *Store) Patch(ctx context.Context, roomID string, p store.Patch) {
	if err := s.write(ctx, roomID, -1, p); err != nil && !errors.Is(err, store.ErrRoomNotFound) {
		s.log.Warn("patch room", zap.String("room", roomID), zap.Error(err))
	}
}

func (s *Store) PatchIfVersion(ctx context.Context, roomID string, version int, p store.Patch) error {
	return s.write(ctx, roomID, version, p)
}

// write merges p under a row lock so conditional writes from different relays serialize.
func (s *Store) write(ctx context.Context, roomID string, version int, p store.Patch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row roomRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", roomID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		if version >= 0 && row.Version != version {
			return store.ErrVersionConflict
		}

		merged, err := store.Merge([]byte(row.Data), p)
		if err != nil {
			return store.ErrInvalidPatch
		}
		if _, err := store.Decode(merged); err != nil {
			return store.ErrInvalidPatch
		}

		err = tx.Model(&roomRow{}).Where("id = ?", roomID).Updates(map[string]any{
			"version":    row.Version + 1,
			"data":       datatypes.JSON(merged),
			"updated_at": time.Now(),
		}).Error
		if err != nil {
			return err
		}
		// delivered on commit
		return tx.Exec("SELECT pg_notify(?, ?)", notifyChannel, roomID).Error
	})
}

// DeleteRoom removes a room; subscribers observe it as closed.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&roomRow{}, "id = ?", roomID).Error; err != nil {
			return err
		}
		return tx.Exec("SELECT pg_notify(?, ?)", notifyChannel, roomID).Error
	})
}

// Reap deletes rooms not written for longer than ttl and returns how many went.
func (s *Store) Reap(ctx context.Context, ttl time.Duration) (int64, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&roomRow{}).
		Where("updated_at < ?", time.Now().Add(-ttl)).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	var n int64
	var errs error
	for _, id := range ids {
		if err := s.DeleteRoom(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reap %s: %w", id, err))
			continue
		}
		n++
	}
	return n, errs
}

func (s *Store) Subscribe(ctx context.Context, roomID string, onChange func(store.Snapshot)) func() {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	wake := make(chan struct{}, 1)
	wake <- struct{}{} // deliver the current record first

	s.mu.Lock()
	if s.subs[roomID] == nil {
		s.subs[roomID] = make(map[string]chan struct{})
	}
	s.subs[roomID][id] = wake
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.subs[roomID], id)
			if len(s.subs[roomID]) == 0 {
				delete(s.subs, roomID)
			}
			s.mu.Unlock()
		}()

		last := -1
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
			snap, err := s.Get(ctx, roomID)
			switch {
			case errors.Is(err, store.ErrRoomNotFound):
				if ctx.Err() == nil {
					onChange(store.Snapshot{})
				}
				cancel()
				return
			case err != nil:
				if ctx.Err() == nil {
					s.log.Warn("refresh subscription", zap.String("room", roomID), zap.Error(err))
				}
				continue
			}
			if snap.Version == last {
				continue
			}
			last = snap.Version
			onChange(snap)
		}
	}()
	return cancel
}

func (s *Store) wake(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[roomID] {
		select {
		case ch <- struct{}{}:
		default: // already pending
		}
	}
}

func (s *Store) listen(ctx context.Context) {
	defer close(s.done)
	backoff := 100 * time.Millisecond

	for ctx.Err() == nil {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("listener dropped, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 5*time.Second)
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	// Changes made while reconnecting were not notified.
	s.wakeAll()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.wake(n.Payload)
	}
}

func (s *Store) wakeAll() {
	s.mu.Lock()
	rooms := make([]string, 0, len(s.subs))
	for id := range s.subs {
		rooms = append(rooms, id)
	}
	s.mu.Unlock()
	for _, id := range rooms {
		s.wake(id)
	}
}
