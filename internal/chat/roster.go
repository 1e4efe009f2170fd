package chat

import (
	"context"

	"github.com/volkanakbulut73/sohbetchat/internal/metrics"
	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

// defaultPersona is used for roster members without a full name on file.
const defaultPersona = "Workigom member"

// rosterColor is the avatar color for roster-derived participants.
const rosterColor = "bg-blue-600"

// SyncRoster reconciles every room's participant set against the external
// roster of approved registrations. A failed fetch leaves existing
// participants untouched; the next tick retries.
func (e *Engine) SyncRoster(ctx context.Context) error {
	regs, err := e.roster.ListApproved(ctx)
	if err != nil {
		metrics.RosterSyncs.WithLabelValues("error").Inc()
		return err
	}

	participants := RosterParticipants(regs, e.reg.Self().Name)

	for _, room := range e.reg.Rooms() {
		if err := e.reg.UpsertParticipants(room.ID, participants); err != nil {
			// Room removed mid-sync; skip it.
			continue
		}
	}

	metrics.RosterSyncs.WithLabelValues("ok").Inc()
	return nil
}

// RosterParticipants maps approved registrations to participants. The
// mapping is deterministic: derived ids and avatar seeds depend only on
// the registration, so repeated syncs with an unchanged roster produce
// identical entries. The local user's own nickname is excluded since the
// session already represents that person.
func RosterParticipants(regs []models.Registration, selfName string) []models.Participant {
	out := make([]models.Participant, 0, len(regs))
	for _, reg := range regs {
		if reg.Status != models.StatusApproved {
			continue
		}
		if reg.Nickname == selfName {
			continue
		}

		id := reg.ID
		if id == "" {
			id = "u-" + reg.Nickname
		}

		persona := reg.FullName
		if persona == "" {
			persona = defaultPersona
		}

		out = append(out, models.Participant{
			ID:      id,
			Name:    reg.Nickname,
			Persona: persona,
			Avatar:  models.AvatarFor(reg.Nickname),
			IsAI:    false,
			Color:   rosterColor,
		})
	}
	return out
}
