package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meetroom/src-server/activity"
	"meetroom/src-server/conflict"
	"meetroom/src-server/model"
	"meetroom/src-server/roomsync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CreateParams struct {
	Subject          string
	Description      string
	Interval         model.Interval
	LocationIDs      []string
	VirtualAccountID string
	AttendeeIDs      []string
	HostID           string
	CreatedBy        string // delegate creating on behalf of the host; defaults to the host
	ReminderMinutes  int
	GuestName        string
	GuestEmail       string
}

// CreateEvent stores a new draft event. The host always ends up among the
// attendees.
func (s *Service) CreateEvent(ctx context.Context, p CreateParams) (*model.Event, error) {
	switch {
	case !p.Interval.Valid():
		return nil, model.NewValidationError("CreateEvent", "end must be after start")
	case strings.TrimSpace(p.Subject) == "":
		return nil, model.NewValidationError("CreateEvent", "subject is blank")
	case p.HostID == "":
		return nil, model.NewValidationError("CreateEvent", "host is blank")
	case p.ReminderMinutes < 0:
		return nil, model.NewValidationError("CreateEvent", "reminder minutes must not be negative")
	}

	ev := &model.Event{
		ID:               uuid.NewString(),
		Subject:          strings.TrimSpace(p.Subject),
		Description:      p.Description,
		State:            model.StateDraft,
		HostID:           p.HostID,
		CreatedBy:        p.CreatedBy,
		VirtualAccountID: p.VirtualAccountID,
		LocationIDs:      p.LocationIDs,
		AttendeeIDs:      p.AttendeeIDs,
		ReminderMinutes:  p.ReminderMinutes,
		GuestName:        p.GuestName,
		GuestEmail:       p.GuestEmail,
	}
	ev.SetInterval(p.Interval)

	if err := s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		if ev.CreatedBy != "" {
			if _, err := model.GetUser(ctx, tx, ev.CreatedBy); err != nil {
				return refError("CreateEvent", err)
			}
		}
		if err := ev.Upsert(ctx, tx); err != nil {
			return err
		}
		if err := ev.LoadRelations(ctx, tx); err != nil {
			return refError("CreateEvent", err)
		}
		u.to = model.StateDraft
		return nil
	}); err != nil {
		return nil, err
	}
	return ev, nil
}

// ConfirmEvent validates every resource of the event and, only if all are
// free, confirms it, materialises its room bookings and reminders. A
// rejected confirm leaves the event exactly as it was.
func (s *Service) ConfirmEvent(ctx context.Context, id, actorID string) (*model.Event, error) {
	var ev *model.Event
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		var err error
		if ev, err = model.LoadEvent(ctx, tx, id); err != nil {
			return err
		}
		if err := authorize(ctx, tx, "ConfirmEvent", ev, actorID, scopeSchedule); err != nil {
			return err
		}
		switch ev.State {
		case model.StateConfirm:
			return nil
		case model.StateCancel:
			return model.NewValidationError("ConfirmEvent", "event is cancelled, reset it to draft first")
		}

		u.from, u.to = ev.State, model.StateConfirm
		ev.State = model.StateConfirm
		if err := conflict.CheckEvent(ctx, tx, ev, model.SyncOptions{}); err != nil {
			return err
		}
		if err := s.autoAttach(ctx, ev, u); err != nil {
			return err
		}
		ev.Version++
		return save(ctx, tx, ev, model.SyncOptions{}, u)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// CancelEvent releases everything the event holds. The external meeting is
// deleted after commit and a failure there does not undo the cancel.
func (s *Service) CancelEvent(ctx context.Context, id, actorID string) error {
	return s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		ev, err := model.LoadEvent(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, tx, "CancelEvent", ev, actorID, scopeSchedule); err != nil {
			return err
		}
		if ev.State == model.StateCancel {
			return nil
		}

		u.from, u.to = ev.State, model.StateCancel
		u.retire(ev)
		ev.State = model.StateCancel
		ev.Version++
		return save(ctx, tx, ev, model.SyncOptions{}, u)
	})
}

// ResetToDraft cancels the derived bookings and reminders but keeps the
// event's data, including its virtual meeting.
func (s *Service) ResetToDraft(ctx context.Context, id, actorID string) error {
	return s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		ev, err := model.LoadEvent(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, tx, "ResetToDraft", ev, actorID, scopeSchedule); err != nil {
			return err
		}
		if ev.State == model.StateDraft {
			return nil
		}

		u.from, u.to = ev.State, model.StateDraft
		ev.State = model.StateDraft
		return save(ctx, tx, ev, model.SyncOptions{}, u)
	})
}

// DeleteEvent removes the event and its derived bookings.
func (s *Service) DeleteEvent(ctx context.Context, id, actorID string) error {
	return s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		ev, err := model.LoadEvent(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, tx, "DeleteEvent", ev, actorID, scopeSchedule); err != nil {
			return err
		}
		u.retire(ev)
		return ev.Delete(ctx, tx)
	})
}

// save writes the event, then projects it onto room bookings and rebuilds its
// reminders unless opts suppresses either.
func save(ctx context.Context, tx bun.IDB, ev *model.Event, opts model.SyncOptions, u *unit) error {
	if err := ev.Upsert(ctx, tx); err != nil {
		return err
	}
	if err := ev.LoadRelations(ctx, tx); err != nil {
		return err
	}

	result, err := roomsync.Forward(ctx, tx, ev, opts)
	if err != nil {
		return err
	}
	u.sync.Created += result.Created
	u.sync.Updated += result.Updated
	u.sync.Cancelled += result.Cancelled

	n, err := activity.Regenerate(ctx, tx, ev, opts)
	if err != nil {
		return err
	}
	u.activities += n
	return nil
}

// refError reports a reference to a missing record as bad input.
func refError(op string, err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return model.NewValidationError(op, "%v", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
