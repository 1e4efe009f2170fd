package models

// RoomType distinguishes multi-party channels from two-party private rooms.
type RoomType string

const (
	RoomChannel RoomType = "channel"
	RoomPrivate RoomType = "private"
)

// ChatRoom is a single conversation context. Name doubles as the message
// store's channel key. Invariants maintained by the registry: Messages holds
// no duplicate ids and is ordered by (timestamp, id) ascending;
// LastMessageAt is the max timestamp across Messages, or the creation time
// when the room is empty.
type ChatRoom struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Topic         string        `json:"topic"`
	Participants  []Participant `json:"participants"`
	Messages      []Message     `json:"messages"`
	LastMessageAt int64         `json:"last_message_at"`
	Type          RoomType      `json:"type"`
	TargetUserID  string        `json:"target_user_id,omitempty"` // private rooms only
	HasAlert      bool          `json:"has_alert"`
}

// Clone returns a deep copy of the room. Registry mutations operate on
// clones so readers never observe a partially updated room.
func (r ChatRoom) Clone() ChatRoom {
	out := r
	out.Participants = make([]Participant, len(r.Participants))
	copy(out.Participants, r.Participants)
	out.Messages = make([]Message, len(r.Messages))
	copy(out.Messages, r.Messages)
	return out
}

// Participant returns the room participant with the given id.
func (r ChatRoom) Participant(id string) (Participant, bool) {
	for _, p := range r.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// AIParticipants returns the bot participants of the room.
func (r ChatRoom) AIParticipants() []Participant {
	var bots []Participant
	for _, p := range r.Participants {
		if p.IsAI {
			bots = append(bots, p)
		}
	}
	return bots
}

// HasMessage reports whether a message with the given id is already cached.
func (r ChatRoom) HasMessage(id string) bool {
	for _, m := range r.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}
