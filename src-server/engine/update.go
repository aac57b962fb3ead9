package engine

import (
	"context"
	"slices"
	"strings"

	"meetroom/src-server/conflict"
	"meetroom/src-server/model"

	"github.com/uptrace/bun"
)

// EventPatch lists the fields to change; nil leaves a field alone.
type EventPatch struct {
	// content
	Subject        *string
	Description    *string
	AddAttendeeIDs []string

	// schedule
	Interval         *model.Interval
	LocationIDs      *[]string
	VirtualAccountID *string
	AttendeeIDs      *[]string // replaces the attendee list
	ReminderMinutes  *int
}

func (p EventPatch) touchesSchedule() bool {
	return p.Interval != nil ||
		p.LocationIDs != nil ||
		p.VirtualAccountID != nil ||
		p.AttendeeIDs != nil ||
		p.ReminderMinutes != nil
}

// UpdateEvent applies a patch. Attendees who are not host, creator or manager
// may only change content. On a confirmed event, schedule changes are
// validated like a confirm, the old virtual meeting is released only after
// the change has committed, and a new one is created in its place.
func (s *Service) UpdateEvent(ctx context.Context, id string, patch EventPatch, actorID string) (*model.Event, error) {
	switch {
	case patch.Interval != nil && !patch.Interval.Valid():
		return nil, model.NewValidationError("UpdateEvent", "end must be after start")
	case patch.Subject != nil && strings.TrimSpace(*patch.Subject) == "":
		return nil, model.NewValidationError("UpdateEvent", "subject is blank")
	case patch.ReminderMinutes != nil && *patch.ReminderMinutes < 0:
		return nil, model.NewValidationError("UpdateEvent", "reminder minutes must not be negative")
	}

	var ev *model.Event
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		var err error
		if ev, err = model.LoadEvent(ctx, tx, id); err != nil {
			return err
		}
		required := scopeContent
		if patch.touchesSchedule() {
			required = scopeSchedule
		}
		if err := authorize(ctx, tx, "UpdateEvent", ev, actorID, required); err != nil {
			return err
		}
		return s.applyPatch(ctx, tx, ev, patch, u)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// RescheduleEvent moves the event and/or switches its virtual account.
func (s *Service) RescheduleEvent(ctx context.Context, id string, interval *model.Interval, virtualAccountID *string, actorID string) (*model.Event, error) {
	if interval == nil && virtualAccountID == nil {
		return nil, model.NewValidationError("RescheduleEvent", "nothing to reschedule")
	}
	return s.UpdateEvent(ctx, id, EventPatch{Interval: interval, VirtualAccountID: virtualAccountID}, actorID)
}

func (s *Service) applyPatch(ctx context.Context, tx bun.IDB, ev *model.Event, patch EventPatch, u *unit) error {
	var (
		timeChanged     bool
		accountChanged  bool
		scheduleChanged bool
		changed         bool
	)

	if patch.Subject != nil && strings.TrimSpace(*patch.Subject) != ev.Subject {
		ev.Subject = strings.TrimSpace(*patch.Subject)
		changed = true
	}
	if patch.Description != nil && *patch.Description != ev.Description {
		ev.Description = *patch.Description
		changed = true
	}
	if patch.Interval != nil && (patch.Interval.Start.Unix() != ev.StartDate || patch.Interval.End.Unix() != ev.EndDate) {
		ev.SetInterval(*patch.Interval)
		timeChanged = true
	}
	if patch.VirtualAccountID != nil && *patch.VirtualAccountID != ev.VirtualAccountID {
		ev.VirtualAccountID = *patch.VirtualAccountID
		accountChanged = true
	}
	if patch.LocationIDs != nil && !sameSet(*patch.LocationIDs, ev.LocationIDs) {
		ev.LocationIDs = slices.Clone(*patch.LocationIDs)
		scheduleChanged = true
	}
	if patch.AttendeeIDs != nil && !sameSet(*patch.AttendeeIDs, ev.AttendeeIDs) {
		ev.AttendeeIDs = slices.Clone(*patch.AttendeeIDs)
		scheduleChanged = true
	}
	for _, id := range patch.AddAttendeeIDs {
		if !ev.HasAttendee(id) {
			ev.AttendeeIDs = append(ev.AttendeeIDs, id)
			scheduleChanged = true
		}
	}
	if patch.ReminderMinutes != nil && *patch.ReminderMinutes != ev.ReminderMinutes {
		ev.ReminderMinutes = *patch.ReminderMinutes
		changed = true
	}

	scheduleChanged = scheduleChanged || timeChanged || accountChanged
	if !changed && !scheduleChanged {
		return nil
	}

	// the old meeting is only forgotten here; it is deleted once this commits
	if (timeChanged || accountChanged) && ev.HasExternalMeeting() {
		u.retire(ev)
	}
	if scheduleChanged {
		ev.Version++
	}

	// referenced records must exist before anything is validated against them
	if err := ev.LoadRelations(ctx, tx); err != nil {
		return refError("UpdateEvent", err)
	}

	if ev.State == model.StateConfirm {
		if scheduleChanged {
			if err := conflict.CheckEvent(ctx, tx, ev, model.SyncOptions{}); err != nil {
				return err
			}
		}
		if err := s.autoAttach(ctx, ev, u); err != nil {
			return err
		}
	}
	return save(ctx, tx, ev, model.SyncOptions{}, u)
}

// GenerateLink creates the virtual meeting for an event that has a virtual
// account but no link yet.
func (s *Service) GenerateLink(ctx context.Context, id, actorID string) (*model.Event, error) {
	var ev *model.Event
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		var err error
		if ev, err = model.LoadEvent(ctx, tx, id); err != nil {
			return err
		}
		if err := authorize(ctx, tx, "GenerateLink", ev, actorID, scopeSchedule); err != nil {
			return err
		}
		switch {
		case ev.VirtualAccount == nil:
			return model.NewValidationError("GenerateLink", "event has no virtual account")
		case ev.State == model.StateCancel:
			return model.NewValidationError("GenerateLink", "event is cancelled")
		case ev.JoinURL != "":
			return nil
		}
		if err := s.attachMeeting(ctx, ev, u); err != nil {
			return err
		}
		return save(ctx, tx, ev, model.SyncOptions{SuppressForwardSync: true}, u)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}
