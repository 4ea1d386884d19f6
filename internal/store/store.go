package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/zainabzahid711/chat-app/internal/models"
)

// ErrDuplicateName is returned when a room with the requested name already exists.
var ErrDuplicateName = errors.New("store: room name already exists")

// ErrRoomNotFound is returned when a message operation references a room that
// does not exist.
var ErrRoomNotFound = errors.New("store: room not found")

// DataStore defines the interface for persistent storage of rooms and messages.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Room operations
	CreateRoom(ctx context.Context, name string) (*models.Room, error)
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetOrCreateRoom(ctx context.Context, id int64) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	CountRooms(ctx context.Context) (int64, error)

	// Message operations
	CreateMessage(ctx context.Context, roomID int64, user, content string) (*models.Message, error)
	ListMessages(ctx context.Context, roomID int64) ([]models.Message, error)
	CountMessages(ctx context.Context) (int64, error)
}

// defaultRoomName names rooms created implicitly on first chat activity.
// An empty name would collide with the unique constraint on the second
// implicit creation.
func defaultRoomName(id int64) string {
	return "room-" + strconv.FormatInt(id, 10)
}

// maxDefaultNameAttempts bounds the retries when default names collide with
// explicitly created rooms.
const maxDefaultNameAttempts = 5

// fallbackRoomName appends a counter when the plain default name already
// belongs to a different room.
func fallbackRoomName(id int64, attempt int) string {
	if attempt == 0 {
		return defaultRoomName(id)
	}
	return defaultRoomName(id) + "-" + strconv.Itoa(attempt)
}
