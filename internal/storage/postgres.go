// PostgreSQL implementations of RoomStore and HistoryStore, for
// deployments that outgrow the embedded SQLite file.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// InitPostgres opens a PostgreSQL connection and creates the schemas.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	if err := createPostgresSchemas(db); err != nil {
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createPostgresSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			schema_version INTEGER NOT NULL DEFAULT 1,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS game_history (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			winner TEXT NOT NULL,
			clue_count INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			transcript JSONB NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
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

// PostgresRoomStore implements RoomStore using PostgreSQL.
type PostgresRoomStore struct {
	db *sql.DB
}

func NewPostgresRoomStore(db *sql.DB) *PostgresRoomStore {
	return &PostgresRoomStore{db: db}
}

func (r *PostgresRoomStore) Save(ctx context.Context, rec RoomRecord) error {
	query := `
		INSERT INTO rooms (room_id, code, schema_version, state, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id) DO UPDATE SET
			code = EXCLUDED.code,
			schema_version = EXCLUDED.schema_version,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.RoomID, rec.Code, rec.SchemaVersion, rec.State, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

func (r *PostgresRoomStore) Load(ctx context.Context, roomID string) (*RoomRecord, error) {
	query := `SELECT room_id, code, schema_version, state, updated_at FROM rooms WHERE room_id = $1`

	var rec RoomRecord
	err := r.db.QueryRowContext(ctx, query, roomID).Scan(
		&rec.RoomID, &rec.Code, &rec.SchemaVersion, &rec.State, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRoomStore) LoadAll(ctx context.Context) ([]RoomRecord, error) {
	query := `SELECT room_id, code, schema_version, state, updated_at FROM rooms ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}
	defer rows.Close()

	var recs []RoomRecord
	for rows.Next() {
		var rec RoomRecord
		if err := rows.Scan(&rec.RoomID, &rec.Code, &rec.SchemaVersion, &rec.State, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *PostgresRoomStore) Delete(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

// PostgresHistoryStore implements HistoryStore using PostgreSQL.
type PostgresHistoryStore struct {
	db *sql.DB
}

func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (r *PostgresHistoryStore) Append(ctx context.Context, g FinishedGame) error {
	query := `
		INSERT INTO game_history (id, room_id, winner, clue_count, duration_ms, transcript, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.RoomID, g.Winner, g.ClueCount, g.DurationMS, g.Transcript, g.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append game history: %w", err)
	}
	return nil
}

func (r *PostgresHistoryStore) ListByRoom(ctx context.Context, roomID string, limit int) ([]FinishedGame, error) {
	query := `
		SELECT id, room_id, winner, clue_count, duration_ms, transcript, finished_at
		FROM game_history
		WHERE room_id = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list game history: %w", err)
	}
	defer rows.Close()

	var games []FinishedGame
	for rows.Next() {
		var g FinishedGame
		if err := rows.Scan(&g.ID, &g.RoomID, &g.Winner, &g.ClueCount, &g.DurationMS, &g.Transcript, &g.FinishedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

var (
	_ RoomStore    = (*PostgresRoomStore)(nil)
	_ HistoryStore = (*PostgresHistoryStore)(nil)
)
