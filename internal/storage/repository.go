// Package storage provides the persistence layer for the game server.
// Room state is stored as one opaque JSON record per room, rewritten
// after every mutation; finished games additionally land in a history
// table for later inspection.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a room record does not exist.
var ErrNotFound = errors.New("room record not found")

// RoomRecord is one persisted room. State is the full game state as
// JSON; the storage layer never looks inside it except during schema
// migration on load.
type RoomRecord struct {
	RoomID        string    `json:"room_id" db:"room_id"`
	Code          string    `json:"code" db:"code"`
	SchemaVersion int       `json:"schema_version" db:"schema_version"`
	State         []byte    `json:"state" db:"state"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// RoomStore defines the interface for room persistence. The room
// package uses this interface; implementations live in this package.
type RoomStore interface {
	// Save upserts a room record.
	Save(ctx context.Context, rec RoomRecord) error

	// Load retrieves one room record, or ErrNotFound.
	Load(ctx context.Context, roomID string) (*RoomRecord, error)

	// LoadAll retrieves every room record, for boot-time reload.
	LoadAll(ctx context.Context) ([]RoomRecord, error)

	// Delete removes a room record.
	Delete(ctx context.Context, roomID string) error
}

// FinishedGame is one completed game kept for history.
type FinishedGame struct {
	ID         string    `json:"id" db:"id"`
	RoomID     string    `json:"room_id" db:"room_id"`
	Winner     string    `json:"winner" db:"winner"`
	ClueCount  int       `json:"clue_count" db:"clue_count"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
	Transcript []byte    `json:"transcript" db:"transcript"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
}

// HistoryStore defines the interface for finished-game history.
type HistoryStore interface {
	// Append adds a finished game to the history log.
	Append(ctx context.Context, g FinishedGame) error

	// ListByRoom retrieves history for one room, newest first.
	ListByRoom(ctx context.Context, roomID string, limit int) ([]FinishedGame, error)
}
