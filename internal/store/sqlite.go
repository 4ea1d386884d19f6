package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/zainabzahid711/chat-app/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the default backend
// when no PostgreSQL URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		username TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateRoom creates a new room with the given name.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (name, created_at)
		VALUES (?, ?)
	`, name, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrDuplicateName
		}
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by ID. Returns nil, nil when the room does not exist.
func (s *SQLiteStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room := &models.Room{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM rooms WHERE id = ?
	`, id).Scan(
		&room.ID,
		&room.Name,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// GetOrCreateRoom returns the room with the given ID, creating it with a
// default name if it does not exist yet. A default name squatted by a
// different room falls back to a suffixed name.
func (s *SQLiteStore) GetOrCreateRoom(ctx context.Context, id int64) (*models.Room, error) {
	now := time.Now().UTC()

	for attempt := 0; attempt < maxDefaultNameAttempts; attempt++ {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO rooms (id, name, created_at)
			VALUES (?, ?, ?)
		`, id, fallbackRoomName(id, attempt), now)
		if err != nil {
			return nil, err
		}

		room, err := s.GetRoom(ctx, id)
		if err != nil {
			return nil, err
		}
		if room != nil {
			return room, nil
		}
		// INSERT OR IGNORE also swallows a name collision; retry suffixed.
	}
	return nil, fmt.Errorf("store: default names for room %d already in use", id)
}

// ListRooms retrieves all rooms in insertion order.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
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
func (s *SQLiteStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	return count, err
}

// CreateMessage persists a message in the given room. Fails with
// ErrRoomNotFound when the room does not exist.
func (s *SQLiteStore) CreateMessage(ctx context.Context, roomID int64, user, content string) (*models.Message, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (room_id, username, content, created_at)
		VALUES (?, ?, ?, ?)
	`, roomID, user, content, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.Message{
		ID:        id,
		RoomID:    roomID,
		User:      user,
		Content:   content,
		Timestamp: now,
	}, nil
}

// ListMessages retrieves all messages in a room ordered by creation
// timestamp ascending.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, username, content, created_at
		FROM messages
		WHERE room_id = ?
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
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
