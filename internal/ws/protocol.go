package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MsgType names a room protocol message.
type MsgType string

// Message types for the room WebSocket protocol.
const (
	// Client → Server
	MsgJoinRequest MsgType = "join-request"

	// Server → Client
	MsgJoinAccepted     MsgType = "join-accepted"
	MsgUsernameExists   MsgType = "username-exists"
	MsgUserJoined       MsgType = "user-joined"
	MsgUserDisconnected MsgType = "user-disconnected"
	MsgError            MsgType = "error"
)

// Gateway lifecycle events. These never appear on the wire.
const (
	EventConnect       = "connect"
	EventDisconnect    = "disconnect"
	EventConnectFailed = "connect_failed"
)

// Message is the envelope for every frame on the room socket.
type Message struct {
	ID        string          `json:"id"`
	Type      MsgType         `json:"type"`
	ReplyTo   string          `json:"reply_to,omitempty"`
	Timestamp int64           `json:"ts"` // unix millis
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds an envelope with a fresh id and timestamp.
func NewMessage(t MsgType, payload any) (*Message, error) {
	msg := &Message{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// ParsePayload decodes the payload into v.
func (m *Message) ParsePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	return json.Unmarshal(m.Payload, v)
}

// JoinRequest asks the server to add the user to a room.
type JoinRequest struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

// RoomUser is a member of a room as reported by the server.
type RoomUser struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
	SocketID string `json:"socketId,omitempty"`
	Status   string `json:"status,omitempty"` // "online" or "offline"
}

// JoinAccepted acknowledges a join and lists everyone in the room.
type JoinAccepted struct {
	User  RoomUser   `json:"user"`
	Users []RoomUser `json:"users"`
}

// UserJoined announces another member.
type UserJoined struct {
	User RoomUser `json:"user"`
}

// UserDisconnected announces a member leaving.
type UserDisconnected struct {
	User RoomUser `json:"user"`
}

// ErrorMsg is sent by the server for protocol errors.
type ErrorMsg struct {
	Message string `json:"message"`
}
