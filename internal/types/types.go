package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Member is one connected session's public view within a room.
// ConnectionId changes on every reconnect, Username does not.
type Member struct {
	ConnectionId string `json:"connection_id"`
	Username     string `json:"username"`
}

const (
	MessageKind      = "message"
	NotificationKind = "notification"
)

// ChatMessage is the canonical form of a chat entry as broadcast by the
// relay. It exists only in transit and in connected clients' in-memory logs.
type ChatMessage struct {
	Id        string    `json:"id"`
	RoomId    string    `json:"room_id"`
	Username  string    `json:"username,omitempty"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}
