package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codewords-live/server/internal/game"
	"github.com/codewords-live/server/internal/platform/logger"
	"github.com/codewords-live/server/internal/platform/metrics"
	"github.com/codewords-live/server/internal/storage"
)

// ErrRoomNotFound is returned when neither memory nor storage has the room.
var ErrRoomNotFound = errors.New("room not found")

// Join codes skip lookalike characters.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
const codeLength = 6

// Manager is the room registry: creation, lookup by id or join code,
// boot-time reload and idle reaping.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	byCode map[string]*Room

	deps Deps
	rng  *rand.Rand
}

// NewManager creates an empty registry sharing one dependency set
// across all rooms.
func NewManager(deps Deps) *Manager {
	if deps.Log == nil {
		deps.Log = logger.NewLogger()
	}
	return &Manager{
		rooms:  make(map[string]*Room),
		byCode: make(map[string]*Room),
		deps:   deps,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create makes a new room with a fresh id and join code, persists its
// initial state, and returns it.
func (m *Manager) Create(ctx context.Context) (*Room, error) {
	m.mu.Lock()
	id := uuid.NewString()
	code := m.newCodeLocked()
	r := New(id, code, m.deps)
	m.rooms[id] = r
	m.byCode[code] = r
	m.mu.Unlock()

	// Initial commit so the room exists in storage before any move.
	if _, err := r.mutate(ctx, "", "CREATE", func(time.Time) error { return nil }); err != nil {
		m.Forget(id)
		return nil, fmt.Errorf("failed to initialize room: %w", err)
	}

	metrics.Get().RecordRoomCreated()
	m.deps.Log.Event("ROOM_CREATED", id, "code="+code)
	return r, nil
}

func (m *Manager) newCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[m.rng.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := m.byCode[code]; !taken {
			return code
		}
	}
}

// Get returns a live room by id, lazily resurrecting it from storage
// when the process restarted since the room last played.
func (m *Manager) Get(ctx context.Context, id string) (*Room, error) {
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return r, nil
	}
	return m.resurrect(ctx, id)
}

// GetByCode resolves a join code to a live room.
func (m *Manager) GetByCode(code string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.byCode[strings.ToUpper(code)]; ok {
		return r, nil
	}
	return nil, ErrRoomNotFound
}

func (m *Manager) resurrect(ctx context.Context, id string) (*Room, error) {
	if m.deps.Store == nil {
		return nil, ErrRoomNotFound
	}
	rec, err := m.deps.Store.Load(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	return m.adopt(rec)
}

func (m *Manager) adopt(rec *storage.RoomRecord) (*Room, error) {
	blob, err := storage.MigrateState(rec.SchemaVersion, rec.State)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate room %s: %w", rec.RoomID, err)
	}
	var st game.State
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %w", rec.RoomID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have resurrected it while we loaded.
	if r, ok := m.rooms[rec.RoomID]; ok {
		return r, nil
	}
	r := Resurrect(rec.RoomID, rec.Code, &st, m.deps)
	m.rooms[rec.RoomID] = r
	m.byCode[rec.Code] = r
	return r, nil
}

// LoadPersisted reloads every stored room at boot.
func (m *Manager) LoadPersisted(ctx context.Context) (int, error) {
	if m.deps.Store == nil {
		return 0, nil
	}
	recs, err := m.deps.Store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load rooms: %w", err)
	}
	loaded := 0
	for i := range recs {
		if _, err := m.adopt(&recs[i]); err != nil {
			m.deps.Log.Error(fmt.Sprintf("skipping unloadable room %s: %v", recs[i].RoomID, err))
			continue
		}
		loaded++
	}
	return loaded, nil
}

// RoomInfo is a discovery summary of one live room.
type RoomInfo struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Phase     game.Phase `json:"phase"`
	Players   int        `json:"players"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// List summarizes the live rooms for the lobby screen.
func (m *Manager) List(ctx context.Context) []RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		snap, err := r.Snapshot(ctx, "")
		if err != nil {
			continue
		}
		last, _ := r.LastActive(ctx)
		infos = append(infos, RoomInfo{
			ID:        r.ID,
			Code:      r.Code,
			Phase:     snap.Phase,
			Players:   len(snap.Players),
			UpdatedAt: last,
		})
	}
	return infos
}

// Forget closes a room and drops it from the registry. Storage is left
// alone so the room can be resurrected.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	r, ok := m.rooms[id]
	if ok {
		delete(m.rooms, id)
		delete(m.byCode, r.Code)
	}
	m.mu.Unlock()
	if ok {
		r.Close()
		metrics.Get().RecordRoomClosed()
	}
}

// Delete closes a room and removes it from storage too.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.Forget(id)
	if m.deps.Store == nil {
		return nil
	}
	if err := m.deps.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

// StartReaper evicts rooms idle past ttl from memory on the given
// interval. Reaped rooms stay in storage.
func (m *Manager) StartReaper(ctx context.Context, ttl, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.reap(ctx, ttl)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) reap(ctx context.Context, ttl time.Duration) {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	cutoff := time.Now().Add(-ttl)
	for _, r := range rooms {
		last, err := r.LastActive(ctx)
		if err != nil {
			continue
		}
		if last.Before(cutoff) {
			m.deps.Log.Info(fmt.Sprintf("reaping idle room %s (last active %s)", r.ID, last.Format(time.RFC3339)))
			m.Forget(r.ID)
		}
	}
}

// CloseAll shuts every room down, for graceful server exit.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		r.Close()
		delete(m.rooms, id)
		delete(m.byCode, r.Code)
	}
}
