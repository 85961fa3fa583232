package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType tells the worker which mirror operation a message asks for.
type MessageType string

const (
	MessageSync   MessageType = "record.sync"
	MessageDelete MessageType = "record.delete"
)

// RecordMessage is a lightweight pointer to a record change. Sync messages
// carry only the id and version; the worker reads the record from the
// database. Delete messages also carry the owner since the row is gone.
type RecordMessage struct {
	Type      MessageType `json:"type"`
	Owner     string      `json:"owner"`
	ID        string      `json:"id"`
	Version   int64       `json:"version,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewRecordSyncMessage creates a sync message for a stored record.
func NewRecordSyncMessage(owner, id string, version int64) *RecordMessage {
	return &RecordMessage{
		Type:      MessageSync,
		Owner:     owner,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// NewRecordDeleteMessage creates a delete message for a removed record.
func NewRecordDeleteMessage(owner, id string) *RecordMessage {
	return &RecordMessage{
		Type:      MessageDelete,
		Owner:     owner,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordMessageFromJSON decodes and validates a message body.
func RecordMessageFromJSON(data []byte) (*RecordMessage, error) {
	var msg RecordMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case MessageSync, MessageDelete:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message without record id")
	}
	if msg.Type == MessageDelete && msg.Owner == "" {
		return nil, fmt.Errorf("delete message without owner")
	}
	return &msg, nil
}
