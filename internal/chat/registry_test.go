package chat

import (
	"reflect"
	"testing"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

func testSelf() models.Participant {
	return models.Participant{ID: "u-1", Name: "Lider", Color: "bg-slate-700"}
}

func testBot() models.Participant {
	return models.Participant{ID: "bot-lara", Name: "Lara", IsAI: true, Color: "bg-pink-600"}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(testSelf(), []models.Participant{testBot()})
	r.AddChannel("#Sohbet", "test channel", nil)
	return r
}

func msg(id string, ts int64) models.Message {
	return models.Message{ID: id, Sender: "Lider", Text: "hello", Timestamp: ts, Channel: "#Sohbet", Type: models.MessageUser}
}

func TestMergeIdempotent(t *testing.T) {
	r := newTestRegistry(t)

	batch := []models.Message{msg("m1", 100), msg("m2", 200)}

	added, ok := r.MergeMessages("#Sohbet", batch)
	if !ok || added != 2 {
		t.Fatalf("first merge: added=%d ok=%v", added, ok)
	}

	added, ok = r.MergeMessages("#Sohbet", batch)
	if !ok || added != 0 {
		t.Fatalf("second merge: added=%d ok=%v, expected no-op", added, ok)
	}

	room, _ := r.Room("#Sohbet")
	if len(room.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(room.Messages))
	}
}

func TestMergeSortsByTimestampThenID(t *testing.T) {
	r := newTestRegistry(t)

	// Out of order on purpose; two messages share a millisecond.
	r.MergeMessages("#Sohbet", []models.Message{msg("m3", 300), msg("m1", 100)})
	r.MergeMessages("#Sohbet", []models.Message{msg("m2", 200), msg("m2b", 200)})

	room, _ := r.Room("#Sohbet")
	want := []string{"m1", "m2", "m2b", "m3"}
	if len(room.Messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(room.Messages))
	}
	for i, id := range want {
		if room.Messages[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, room.Messages[i].ID)
		}
	}
	if room.LastMessageAt != 300 {
		t.Fatalf("expected lastMessageAt 300, got %d", room.LastMessageAt)
	}
}

func TestMergeOverlappingBatches(t *testing.T) {
	r := newTestRegistry(t)

	// Simulates the poll/push overlap: both deliveries carry m2.
	r.MergeMessages("#Sohbet", []models.Message{msg("m1", 100), msg("m2", 200)})
	added, _ := r.MergeMessages("#Sohbet", []models.Message{msg("m2", 200), msg("m3", 300)})
	if added != 1 {
		t.Fatalf("expected 1 new message, got %d", added)
	}

	room, _ := r.Room("#Sohbet")
	if len(room.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(room.Messages))
	}
}

func TestMergeUnknownChannel(t *testing.T) {
	r := newTestRegistry(t)

	_, ok := r.MergeMessages("#nope", []models.Message{msg("m1", 100)})
	if ok {
		t.Fatal("expected ok=false for unknown channel")
	}
}

func TestMergeSetsAlertOnInactiveRoom(t *testing.T) {
	r := newTestRegistry(t)
	r.AddChannel("#Radyo", "music", nil)

	// #Sohbet is active; new messages in #Radyo must raise its alert.
	r.MergeMessages("#Radyo", []models.Message{{ID: "r1", Sender: "Lider", Text: "hi", Timestamp: 100, Channel: "#Radyo", Type: models.MessageUser}})

	radyo, _ := r.Room("#Radyo")
	if !radyo.HasAlert {
		t.Fatal("expected alert on inactive room")
	}

	sohbet, _ := r.Room("#Sohbet")
	if sohbet.HasAlert {
		t.Fatal("active room must never get an alert")
	}
}

func TestMergeNoAlertOnActiveRoom(t *testing.T) {
	r := newTestRegistry(t)

	r.MergeMessages("#Sohbet", []models.Message{msg("m1", 100)})

	room, _ := r.Room("#Sohbet")
	if room.HasAlert {
		t.Fatal("active room got an alert")
	}
}

func TestMergeDuplicatesDoNotRaiseAlert(t *testing.T) {
	r := newTestRegistry(t)
	r.AddChannel("#Radyo", "music", nil)

	m := models.Message{ID: "r1", Sender: "Lider", Text: "hi", Timestamp: 100, Channel: "#Radyo", Type: models.MessageUser}
	r.MergeMessages("#Radyo", []models.Message{m})
	if err := r.SwitchActive("#Radyo"); err != nil {
		t.Fatal(err)
	}
	if err := r.SwitchActive("#Sohbet"); err != nil {
		t.Fatal(err)
	}

	// Redelivery of an already-cached message is not news.
	r.MergeMessages("#Radyo", []models.Message{m})

	radyo, _ := r.Room("#Radyo")
	if radyo.HasAlert {
		t.Fatal("duplicate-only merge raised an alert")
	}
}

func TestSwitchActiveClearsAlert(t *testing.T) {
	r := newTestRegistry(t)
	r.AddChannel("#Radyo", "music", nil)
	r.MergeMessages("#Radyo", []models.Message{{ID: "r1", Sender: "Lider", Text: "hi", Timestamp: 100, Channel: "#Radyo", Type: models.MessageUser}})

	if err := r.SwitchActive("#Radyo"); err != nil {
		t.Fatal(err)
	}

	radyo, _ := r.Room("#Radyo")
	if radyo.HasAlert {
		t.Fatal("switching to a room must clear its alert")
	}
	if r.ActiveID() != "#Radyo" {
		t.Fatalf("expected active #Radyo, got %s", r.ActiveID())
	}
}

func TestSwitchActiveUnknownRoom(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.SwitchActive("#nope"); err == nil {
		t.Fatal("expected error for unknown room")
	}
	if r.ActiveID() != "#Sohbet" {
		t.Fatal("failed switch must not change the active room")
	}
}

func TestAddChannelFirstBecomesActive(t *testing.T) {
	r := NewRegistry(testSelf(), nil)
	r.AddChannel("#Sohbet", "", nil)
	r.AddChannel("#Radyo", "", nil)

	if r.ActiveID() != "#Sohbet" {
		t.Fatalf("expected first channel active, got %s", r.ActiveID())
	}
}

func TestAddChannelSeedMessages(t *testing.T) {
	r := NewRegistry(testSelf(), nil)
	room := r.AddChannel("#Sohbet", "", []models.Message{msg("m2", 200), msg("m1", 100)})

	if len(room.Messages) != 2 || room.Messages[0].ID != "m1" {
		t.Fatal("seed messages must be stored in display order")
	}
	if room.LastMessageAt != 200 {
		t.Fatalf("expected lastMessageAt 200, got %d", room.LastMessageAt)
	}
}

func TestAddPrivateRoomDeterministicName(t *testing.T) {
	r := newTestRegistry(t)

	room, err := r.AddPrivateRoom(models.Participant{ID: "u-2", Name: "ayse"})
	if err != nil {
		t.Fatal(err)
	}
	if room.ID != "private:u-1:u-2" {
		t.Fatalf("expected private:u-1:u-2, got %s", room.ID)
	}
	if room.Type != models.RoomPrivate || room.TargetUserID != "u-2" {
		t.Fatalf("unexpected room: %+v", room)
	}
	if r.ActiveID() != room.ID {
		t.Fatal("new private room must become active")
	}
}

func TestAddPrivateRoomRefocusesExisting(t *testing.T) {
	r := newTestRegistry(t)
	target := models.Participant{ID: "u-2", Name: "ayse"}

	first, _ := r.AddPrivateRoom(target)
	r.MergeMessages(first.Name, []models.Message{{ID: "p1", Sender: "ayse", Text: "hi", Timestamp: 100, Channel: first.Name, Type: models.MessageUser}})
	if err := r.SwitchActive("#Sohbet"); err != nil {
		t.Fatal(err)
	}

	second, err := r.AddPrivateRoom(target)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same room, got %s and %s", first.ID, second.ID)
	}
	if len(r.Rooms()) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(r.Rooms()))
	}
	if second.HasAlert {
		t.Fatal("refocusing must clear the alert")
	}
}

func TestAddPrivateRoomWithSelf(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.AddPrivateRoom(testSelf()); err != ErrSelfChat {
		t.Fatalf("expected ErrSelfChat, got %v", err)
	}
}

func TestRemovePrivateRoomFallsBackToChannel(t *testing.T) {
	r := newTestRegistry(t)
	room, _ := r.AddPrivateRoom(models.Participant{ID: "u-2", Name: "ayse"})

	if err := r.RemovePrivateRoom(room.ID); err != nil {
		t.Fatal(err)
	}
	if r.ActiveID() != "#Sohbet" {
		t.Fatalf("expected fallback to #Sohbet, got %s", r.ActiveID())
	}
	if _, ok := r.Room(room.ID); ok {
		t.Fatal("removed room still present")
	}
}

func TestRemovePrivateRoomWithoutChannelFallsBackToAnyRoom(t *testing.T) {
	r := NewRegistry(testSelf(), []models.Participant{testBot()})
	first, _ := r.AddPrivateRoom(models.Participant{ID: "u-2", Name: "ayse"})
	second, _ := r.AddPrivateRoom(models.Participant{ID: "u-3", Name: "mehmet"})

	if r.ActiveID() != second.ID {
		t.Fatalf("expected %s active, got %s", second.ID, r.ActiveID())
	}
	if err := r.RemovePrivateRoom(second.ID); err != nil {
		t.Fatal(err)
	}
	if r.ActiveID() != first.ID {
		t.Fatalf("expected fallback to %s, got %s", first.ID, r.ActiveID())
	}
}

func TestRemoveChannelRejected(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.RemovePrivateRoom("#Sohbet"); err == nil {
		t.Fatal("channel rooms must not be removable")
	}
}

func TestUpsertParticipantsKeepsSelfAndBots(t *testing.T) {
	r := newTestRegistry(t)

	roster := []models.Participant{{ID: "u-2", Name: "ayse"}}
	if err := r.UpsertParticipants("#Sohbet", roster); err != nil {
		t.Fatal(err)
	}

	room, _ := r.Room("#Sohbet")
	for _, id := range []string{"u-1", "bot-lara", "u-2"} {
		if _, ok := room.Participant(id); !ok {
			t.Fatalf("participant %s missing after upsert", id)
		}
	}

	// An empty roster never evicts the local user or the static bots.
	if err := r.UpsertParticipants("#Sohbet", nil); err != nil {
		t.Fatal(err)
	}
	room, _ = r.Room("#Sohbet")
	if len(room.Participants) != 2 {
		t.Fatalf("expected self + bot, got %d participants", len(room.Participants))
	}
}

func TestUpsertParticipantsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	roster := []models.Participant{{ID: "u-2", Name: "ayse", Avatar: models.AvatarFor("ayse")}}

	r.UpsertParticipants("#Sohbet", roster)
	first, _ := r.Room("#Sohbet")

	r.UpsertParticipants("#Sohbet", roster)
	second, _ := r.Room("#Sohbet")

	if !reflect.DeepEqual(first.Participants, second.Participants) {
		t.Fatal("repeated upsert with identical roster changed the participant set")
	}
}

func TestBlockHidesMessages(t *testing.T) {
	r := newTestRegistry(t)
	r.UpsertParticipants("#Sohbet", []models.Participant{{ID: "u-2", Name: "ayse"}})
	r.MergeMessages("#Sohbet", []models.Message{
		msg("m1", 100),
		{ID: "m2", Sender: "ayse", Text: "spam", Timestamp: 200, Channel: "#Sohbet", Type: models.MessageUser},
	})

	r.Block("u-2")
	visible, err := r.VisibleMessages("#Sohbet")
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].ID != "m1" {
		t.Fatalf("expected only m1 visible, got %v", visible)
	}

	r.Unblock("u-2")
	visible, _ = r.VisibleMessages("#Sohbet")
	if len(visible) != 2 {
		t.Fatalf("expected both messages after unblock, got %d", len(visible))
	}
}

func TestSetSelfNameRenamesEverywhere(t *testing.T) {
	r := newTestRegistry(t)
	r.AddChannel("#Radyo", "", nil)

	r.SetSelfName("ayse")

	if r.Self().Name != "ayse" {
		t.Fatalf("expected self renamed, got %s", r.Self().Name)
	}
	for _, room := range r.Rooms() {
		p, ok := room.Participant("u-1")
		if !ok || p.Name != "ayse" {
			t.Fatalf("room %s: self not renamed: %+v", room.ID, p)
		}
	}
}

func TestRoomSnapshotsAreCopies(t *testing.T) {
	r := newTestRegistry(t)
	r.MergeMessages("#Sohbet", []models.Message{msg("m1", 100)})

	room, _ := r.Room("#Sohbet")
	room.Messages[0].Text = "tampered"
	room.Participants[0].Name = "tampered"

	fresh, _ := r.Room("#Sohbet")
	if fresh.Messages[0].Text == "tampered" || fresh.Participants[0].Name == "tampered" {
		t.Fatal("mutating a snapshot leaked into the registry")
	}
}
