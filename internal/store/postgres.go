package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zainabzahid711/chat-app/internal/models"
)

// Postgres error codes for constraint violations.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		room_id BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		username TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_id, created_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateRoom creates a new room with the given name.
func (s *PostgresStore) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (name)
		VALUES ($1)
		RETURNING id, name, created_at
	`, name).Scan(
		&room.ID,
		&room.Name,
		&room.CreatedAt,
	)
	if err != nil {
		// Only the name constraint means a duplicate name; a primary key
		// conflict is a different failure.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation &&
			pgErr.ConstraintName == "rooms_name_key" {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return room, nil
}

// GetRoom retrieves a room by ID. Returns nil, nil when the room does not exist.
func (s *PostgresStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM rooms WHERE id = $1
	`, id).Scan(
		&room.ID,
		&room.Name,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// GetOrCreateRoom returns the room with the given ID, creating it with a
// default name if it does not exist yet. Used on first chat activity in a
// room that may not yet be registered. A default name squatted by a
// different room falls back to a suffixed name.
func (s *PostgresStore) GetOrCreateRoom(ctx context.Context, id int64) (*models.Room, error) {
	for attempt := 0; attempt < maxDefaultNameAttempts; attempt++ {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO rooms (id, name)
			VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING
		`, id, fallbackRoomName(id, attempt))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				// Default name taken by another room; retry suffixed.
				continue
			}
			return nil, err
		}

		if tag.RowsAffected() > 0 {
			// An explicit-id insert does not advance the identity sequence;
			// left behind, the next CreateRoom would collide on the key.
			if _, err := s.pool.Exec(ctx, `
				SELECT setval(pg_get_serial_sequence('rooms', 'id'),
					GREATEST((SELECT MAX(id) FROM rooms), 1))
			`); err != nil {
				return nil, err
			}
		}
		return s.GetRoom(ctx, id)
	}
	return nil, fmt.Errorf("store: default names for room %d already in use", id)
}

// ListRooms retrieves all rooms in insertion order.
func (s *PostgresStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_at
		FROM rooms
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// CountRooms returns the total number of rooms.
func (s *PostgresStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	return count, err
}

// CreateMessage persists a message in the given room. Fails with
// ErrRoomNotFound when the room does not exist.
func (s *PostgresStore) CreateMessage(ctx context.Context, roomID int64, user, content string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (room_id, username, content)
		VALUES ($1, $2, $3)
		RETURNING id, room_id, username, content, created_at
	`, roomID, user, content).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.User,
		&msg.Content,
		&msg.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves all messages in a room ordered by creation
// timestamp ascending.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID int64) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, username, content, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at, id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.User, &msg.Content, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountMessages returns the total number of messages across all rooms.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
