// internal/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTypeConnected EventType = "connected"
	EventTypeChange    EventType = "subscription_changed"
	EventTypePing      EventType = "ping"
	EventTypePong      EventType = "pong"
	EventTypeWatch     EventType = "watch"
	EventTypeUnwatch   EventType = "unwatch"
	EventTypeError     EventType = "error"
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// WatchRequest narrows a client's feed to specific users. A client with no
// watches receives every change.
type WatchRequest struct {
	UserIDs []string `json:"user_ids"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
