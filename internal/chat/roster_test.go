package chat

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

func TestRosterParticipantsDeterministic(t *testing.T) {
	regs := []models.Registration{
		{ID: "reg-1", Nickname: "ayse", FullName: "Ayse Yilmaz", Status: models.StatusApproved},
		{Nickname: "mehmet", Status: models.StatusApproved},
	}

	first := RosterParticipants(regs, "Lider")
	second := RosterParticipants(regs, "Lider")
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical roster input produced different participants")
	}
}

func TestRosterParticipantsFilters(t *testing.T) {
	regs := []models.Registration{
		{ID: "reg-1", Nickname: "ayse", Status: models.StatusApproved},
		{ID: "reg-2", Nickname: "mehmet", Status: models.StatusPending},
		{ID: "reg-3", Nickname: "veli", Status: models.StatusRejected},
		{ID: "reg-4", Nickname: "Lider", Status: models.StatusApproved},
	}

	out := RosterParticipants(regs, "Lider")
	if len(out) != 1 || out[0].Name != "ayse" {
		t.Fatalf("expected only ayse, got %+v", out)
	}
}

func TestRosterParticipantsDerivedFields(t *testing.T) {
	regs := []models.Registration{{Nickname: "ayse", Status: models.StatusApproved}}

	out := RosterParticipants(regs, "Lider")
	if len(out) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(out))
	}
	p := out[0]
	if p.ID != "u-ayse" {
		t.Fatalf("expected derived id u-ayse, got %s", p.ID)
	}
	if p.Avatar != "https://picsum.photos/seed/ayse/200/200" {
		t.Fatalf("unexpected avatar: %s", p.Avatar)
	}
	if p.Persona != defaultPersona {
		t.Fatalf("expected default persona, got %s", p.Persona)
	}
	if p.IsAI {
		t.Fatal("roster members are never bots")
	}
}

func TestSyncRosterAddsApprovedMembers(t *testing.T) {
	fs := newFakeMessageStore()
	roster := &fakeRoster{regs: []models.Registration{
		{ID: "reg-1", Nickname: "ayse", Status: models.StatusApproved},
	}}
	e, reg := newTestEngine(t, fs, roster, nil, nil, ModePoll)

	if err := e.SyncRoster(context.Background()); err != nil {
		t.Fatal(err)
	}

	room, _ := reg.Room("#Sohbet")
	if _, ok := room.Participant("reg-1"); !ok {
		t.Fatal("approved member missing from room")
	}
	if _, ok := room.Participant("u-1"); !ok {
		t.Fatal("self evicted by roster sync")
	}
	if _, ok := room.Participant("bot-lara"); !ok {
		t.Fatal("static bot evicted by roster sync")
	}
}

func TestSyncRosterFailureKeepsParticipants(t *testing.T) {
	fs := newFakeMessageStore()
	roster := &fakeRoster{regs: []models.Registration{
		{ID: "reg-1", Nickname: "ayse", Status: models.StatusApproved},
	}}
	e, reg := newTestEngine(t, fs, roster, nil, nil, ModePoll)

	if err := e.SyncRoster(context.Background()); err != nil {
		t.Fatal(err)
	}

	roster.err = errors.New("roster unreachable")
	if err := e.SyncRoster(context.Background()); err == nil {
		t.Fatal("expected error from failed sync")
	}

	// The failed cycle must not wipe the previously synced member.
	room, _ := reg.Room("#Sohbet")
	if _, ok := room.Participant("reg-1"); !ok {
		t.Fatal("failed sync dropped an existing member")
	}
}

func TestSyncRosterCoversNewRooms(t *testing.T) {
	fs := newFakeMessageStore()
	roster := &fakeRoster{regs: []models.Registration{
		{ID: "reg-1", Nickname: "ayse", Status: models.StatusApproved},
	}}
	e, reg := newTestEngine(t, fs, roster, nil, nil, ModePoll)

	reg.AddChannel("#Radyo", "music", nil)
	if err := e.SyncRoster(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"#Sohbet", "#Radyo"} {
		room, _ := reg.Room(id)
		if _, ok := room.Participant("reg-1"); !ok {
			t.Fatalf("room %s missing the synced member", id)
		}
	}
}
