package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// InitSQLite initializes the local SQLite database and creates the
// schemas for room state and game history.
func InitSQLite(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSQLiteSchemas(db); err != nil {
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createSQLiteSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id TEXT PRIMARY KEY,
			code TEXT NOT NULL,
			schema_version INTEGER NOT NULL DEFAULT 1,
			state TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_code ON rooms(code);`,
		`CREATE TABLE IF NOT EXISTS game_history (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			winner TEXT NOT NULL,
			clue_count INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			transcript TEXT NOT NULL,
			finished_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_history_room_id ON game_history(room_id);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// SQLiteRoomStore implements RoomStore for SQLite.
type SQLiteRoomStore struct {
	db *sql.DB
}

func NewSQLiteRoomStore(db *sql.DB) *SQLiteRoomStore {
	return &SQLiteRoomStore{db: db}
}

func (r *SQLiteRoomStore) Save(ctx context.Context, rec RoomRecord) error {
	query := `
		INSERT INTO rooms (room_id, code, schema_version, state, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			code=excluded.code,
			schema_version=excluded.schema_version,
			state=excluded.state,
			updated_at=excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.RoomID, rec.Code, rec.SchemaVersion, string(rec.State), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

func (r *SQLiteRoomStore) Load(ctx context.Context, roomID string) (*RoomRecord, error) {
	query := `SELECT room_id, code, schema_version, state, updated_at FROM rooms WHERE room_id = ?`
	rec, err := scanRoom(r.db.QueryRowContext(ctx, query, roomID))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *SQLiteRoomStore) LoadAll(ctx context.Context) ([]RoomRecord, error) {
	query := `SELECT room_id, code, schema_version, state, updated_at FROM rooms ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}
	defer rows.Close()

	var recs []RoomRecord
	for rows.Next() {
		var rec RoomRecord
		var stateStr string
		if err := rows.Scan(&rec.RoomID, &rec.Code, &rec.SchemaVersion, &stateStr, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.State = []byte(stateStr)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *SQLiteRoomStore) Delete(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*RoomRecord, error) {
	var rec RoomRecord
	var stateStr string
	err := row.Scan(&rec.RoomID, &rec.Code, &rec.SchemaVersion, &stateStr, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	rec.State = []byte(stateStr)
	return &rec, nil
}

// SQLiteHistoryStore implements HistoryStore for SQLite.
type SQLiteHistoryStore struct {
	db *sql.DB
}

func NewSQLiteHistoryStore(db *sql.DB) *SQLiteHistoryStore {
	return &SQLiteHistoryStore{db: db}
}

func (r *SQLiteHistoryStore) Append(ctx context.Context, g FinishedGame) error {
	query := `
		INSERT INTO game_history (id, room_id, winner, clue_count, duration_ms, transcript, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.RoomID, g.Winner, g.ClueCount, g.DurationMS, string(g.Transcript), g.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append game history: %w", err)
	}
	return nil
}

func (r *SQLiteHistoryStore) ListByRoom(ctx context.Context, roomID string, limit int) ([]FinishedGame, error) {
	query := `
		SELECT id, room_id, winner, clue_count, duration_ms, transcript, finished_at
		FROM game_history WHERE room_id = ? ORDER BY finished_at DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list game history: %w", err)
	}
	defer rows.Close()

	var games []FinishedGame
	for rows.Next() {
		var g FinishedGame
		var transcript string
		if err := rows.Scan(&g.ID, &g.RoomID, &g.Winner, &g.ClueCount, &g.DurationMS, &transcript, &g.FinishedAt); err != nil {
			return nil, err
		}
		g.Transcript = []byte(transcript)
		games = append(games, g)
	}
	return games, rows.Err()
}

var (
	_ RoomStore    = (*SQLiteRoomStore)(nil)
	_ HistoryStore = (*SQLiteHistoryStore)(nil)
)
