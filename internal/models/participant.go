package models

// Participant represents a user or bot visible in a room's member list.
// A participant may appear in multiple rooms; rooms share the entry by id.
type Participant struct {
	ID      string `json:"id"`
	Name    string `json:"name"` // unique display handle
	Persona string `json:"persona"`
	Avatar  string `json:"avatar"`
	IsAI    bool   `json:"is_ai"`
	Color   string `json:"color"`
}

// AvatarFor returns the deterministic avatar URL for a nickname. Repeated
// roster syncs must map the same nickname to the same URL, otherwise the
// member list flickers on every cycle.
func AvatarFor(nickname string) string {
	return "https://picsum.photos/seed/" + nickname + "/200/200"
}
