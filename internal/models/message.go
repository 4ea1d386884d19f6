package models

import "time"

// Message is a chat message persisted for a room. Messages are immutable
// after creation and are removed only when their room is deleted.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room"`
	User      string    `json:"user"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
