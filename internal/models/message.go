package models

// MessageType classifies a chat message.
type MessageType string

const (
	MessageUser   MessageType = "USER"
	MessageSystem MessageType = "SYSTEM"
	MessageError  MessageType = "ERROR"
)

// Message represents a single chat message as stored in the message store.
// Messages are immutable once created; ID is store-assigned and is the
// deduplication key for every sync path.
type Message struct {
	ID        string      `json:"id"` // ULID or store record id
	Sender    string      `json:"sender"`
	Text      string      `json:"text"`
	Timestamp int64       `json:"ts"` // Unix ms
	Channel   string      `json:"channel"`
	Type      MessageType `json:"type"`
}

// Less reports whether m sorts before other in display order.
// Display order is (timestamp, id) ascending; the id tiebreak keeps the
// total order stable when two messages share a millisecond.
func (m Message) Less(other Message) bool {
	if m.Timestamp != other.Timestamp {
		return m.Timestamp < other.Timestamp
	}
	return m.ID < other.ID
}
