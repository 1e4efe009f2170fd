package chat

import "errors"

// ErrSelfChat is returned when a user tries to open a private chat with
// themselves.
var ErrSelfChat = errors.New("chat: cannot start a private chat with yourself")

// PrivateChannelName derives the canonical channel name for a private chat
// between two participant ids. The pair is ordered lexicographically so
// both parties compute the same name regardless of who initiates:
// PrivateChannelName(a, b) == PrivateChannelName(b, a).
func PrivateChannelName(idA, idB string) (string, error) {
	if idA == idB {
		return "", ErrSelfChat
	}
	lo, hi := idA, idB
	if hi < lo {
		lo, hi = hi, lo
	}
	return "private:" + lo + ":" + hi, nil
}
