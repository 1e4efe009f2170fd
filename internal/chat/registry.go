package chat

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

// Registry is the authoritative in-memory collection of chat rooms. All
// mutations replace whole room values under the lock, so snapshots handed
// to readers are never partially updated. Tab order is creation order.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]models.ChatRoom
	order    []string
	activeID string
	self     models.Participant
	bots     []models.Participant
	blocked  map[string]struct{}
}

// NewRegistry creates a registry for the given local user and statically
// configured bot participants. The self and static bot entries survive
// every roster sync.
func NewRegistry(self models.Participant, staticBots []models.Participant) *Registry {
	return &Registry{
		rooms:   make(map[string]models.ChatRoom),
		self:    self,
		bots:    append([]models.Participant(nil), staticBots...),
		blocked: make(map[string]struct{}),
	}
}

// AddChannel provisions a channel room. The room id doubles as the store
// channel key. The first channel added becomes the active room.
func (r *Registry) AddChannel(name, topic string, seed []models.Message) models.ChatRoom {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[name]; ok {
		return room
	}

	now := time.Now().UnixMilli()
	room := models.ChatRoom{
		ID:            name,
		Name:          name,
		Topic:         topic,
		Participants:  r.baseParticipants(nil),
		Messages:      sortedCopy(seed),
		LastMessageAt: now,
		Type:          models.RoomChannel,
	}
	if len(room.Messages) > 0 {
		room.LastMessageAt = room.Messages[len(room.Messages)-1].Timestamp
	}

	r.rooms[name] = room
	r.order = append(r.order, name)
	if r.activeID == "" {
		r.activeID = name
	}
	return room
}

// Rooms returns deep copies of all rooms in tab order.
func (r *Registry) Rooms() []models.ChatRoom {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ChatRoom, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rooms[id].Clone())
	}
	return out
}

// Room returns a deep copy of a single room.
func (r *Registry) Room(id string) (models.ChatRoom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return models.ChatRoom{}, false
	}
	return room.Clone(), true
}

// RoomByChannel returns the room whose name matches the store channel key.
func (r *Registry) RoomByChannel(channel string) (models.ChatRoom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		if room.Name == channel {
			return room.Clone(), true
		}
	}
	return models.ChatRoom{}, false
}

// ActiveID returns the id of the currently focused room.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Self returns the local user participant.
func (r *Registry) Self() models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.self
}

// SwitchActive focuses a room and clears its alert flag. Other rooms'
// alerts are left untouched.
func (r *Registry) SwitchActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return fmt.Errorf("registry: no room %q", id)
	}

	r.activeID = id
	room.HasAlert = false
	r.rooms[id] = room
	return nil
}

// MergeMessages folds fetched messages into the room serving the given
// channel. Messages whose id is already cached are discarded, the result
// is re-sorted by (timestamp, id), and the alert flag is raised when the
// room is not active. A merge with nothing new mutates nothing. The alert
// update happens under the same lock as the message update, so a reader
// never sees new messages with a stale alert.
func (r *Registry) MergeMessages(channel string, msgs []models.Message) (added int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var roomID string
	for id, room := range r.rooms {
		if room.Name == channel {
			roomID = id
			break
		}
	}
	if roomID == "" {
		return 0, false
	}

	room := r.rooms[roomID].Clone()

	existing := make(map[string]struct{}, len(room.Messages))
	for _, m := range room.Messages {
		existing[m.ID] = struct{}{}
	}

	for _, m := range msgs {
		if _, dup := existing[m.ID]; dup {
			continue
		}
		existing[m.ID] = struct{}{}
		room.Messages = append(room.Messages, m)
		if m.Timestamp > room.LastMessageAt {
			room.LastMessageAt = m.Timestamp
		}
		added++
	}

	if added == 0 {
		return 0, true
	}

	// Fetch order and push delivery order are not chronological; always
	// re-sort after a merge.
	sort.Slice(room.Messages, func(i, j int) bool {
		return room.Messages[i].Less(room.Messages[j])
	})

	if roomID != r.activeID {
		room.HasAlert = true
	}

	r.rooms[roomID] = room
	return added, true
}

// UpsertParticipants replaces a room's participant set with
// self + static bots + roster, deduplicated by id with last-write-wins.
// The local user and static bots are always present regardless of roster
// content.
func (r *Registry) UpsertParticipants(roomID string, roster []models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("registry: no room %q", roomID)
	}

	all := make([]models.Participant, 0, 1+len(r.bots)+len(roster))
	all = append(all, r.self)
	all = append(all, r.bots...)
	all = append(all, roster...)

	room = room.Clone()
	room.Participants = dedupeByID(all)
	r.rooms[roomID] = room
	return nil
}

// AddPrivateRoom starts (or refocuses) a private chat with the target. The
// room identity is derived from the participant pair, so both parties
// converge on the same room. Starting a chat with oneself is rejected.
func (r *Registry) AddPrivateRoom(target models.Participant) (models.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, err := PrivateChannelName(r.self.ID, target.ID)
	if err != nil {
		return models.ChatRoom{}, err
	}

	if room, ok := r.rooms[name]; ok {
		r.activeID = name
		room.HasAlert = false
		r.rooms[name] = room
		return room.Clone(), nil
	}

	room := models.ChatRoom{
		ID:            name,
		Name:          name,
		Topic:         "Private chat with " + target.Name,
		Participants:  []models.Participant{r.self, target},
		Messages:      nil,
		LastMessageAt: time.Now().UnixMilli(),
		Type:          models.RoomPrivate,
		TargetUserID:  target.ID,
	}

	r.rooms[name] = room
	r.order = append(r.order, name)
	r.activeID = name
	return room.Clone(), nil
}

// RemovePrivateRoom closes a private room. Channel rooms cannot be
// removed. If the removed room was active, focus falls back to the first
// channel room, or the first remaining room of any type; the registry
// never keeps an active pointer to a removed room.
func (r *Registry) RemovePrivateRoom(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return fmt.Errorf("registry: no room %q", id)
	}
	if room.Type != models.RoomPrivate {
		return fmt.Errorf("registry: room %q is not private", id)
	}

	delete(r.rooms, id)
	for i, rid := range r.order {
		if rid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.activeID == id {
		r.activeID = ""
		for _, rid := range r.order {
			if r.rooms[rid].Type == models.RoomChannel {
				r.activeID = rid
				break
			}
		}
		// No channel room left; any remaining room beats a dangling pointer.
		if r.activeID == "" && len(r.order) > 0 {
			r.activeID = r.order[0]
		}
	}
	return nil
}

// SetSelfName renames the local user across every room's participant list.
func (r *Registry) SetSelfName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return
	}

	r.self.Name = name
	for id, room := range r.rooms {
		room = room.Clone()
		for i, p := range room.Participants {
			if p.ID == r.self.ID {
				p.Name = name
				room.Participants[i] = p
			}
		}
		r.rooms[id] = room
	}
}

// Block hides a participant's messages from rendering. The underlying
// caches and the store are untouched.
func (r *Registry) Block(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked[participantID] = struct{}{}
}

// Unblock removes a participant from the block list.
func (r *Registry) Unblock(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blocked, participantID)
}

// VisibleMessages returns a room's messages with blocked senders filtered
// out.
func (r *Registry) VisibleMessages(roomID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("registry: no room %q", roomID)
	}

	if len(r.blocked) == 0 {
		out := make([]models.Message, len(room.Messages))
		copy(out, room.Messages)
		return out, nil
	}

	// Messages carry sender display names; map blocked ids to names via
	// the room's participant set.
	blockedNames := make(map[string]struct{}, len(r.blocked))
	for _, p := range room.Participants {
		if _, ok := r.blocked[p.ID]; ok {
			blockedNames[p.Name] = struct{}{}
		}
	}

	out := make([]models.Message, 0, len(room.Messages))
	for _, m := range room.Messages {
		if _, hidden := blockedNames[m.Sender]; hidden {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// baseParticipants builds self + static bots + extra, deduplicated.
func (r *Registry) baseParticipants(extra []models.Participant) []models.Participant {
	all := make([]models.Participant, 0, 1+len(r.bots)+len(extra))
	all = append(all, r.self)
	all = append(all, r.bots...)
	all = append(all, extra...)
	return dedupeByID(all)
}

// dedupeByID keeps first-seen insertion order with last-write-wins values.
func dedupeByID(participants []models.Participant) []models.Participant {
	index := make(map[string]int, len(participants))
	out := make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		if i, seen := index[p.ID]; seen {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

// sortedCopy returns msgs copied and ordered by (timestamp, id).
func sortedCopy(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
