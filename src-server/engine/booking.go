package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"

	"meetroom/src-server/conflict"
	"meetroom/src-server/model"
	"meetroom/src-server/roomsync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingPatch struct {
	Subject     *string
	Description *string
	Interval    *model.Interval
	AttendeeIDs *[]string
}

// reverse pushes must not come back as a forward sync
var reverseWrite = model.SyncOptions{
	Direction:           model.SyncReverse,
	SuppressForwardSync: true,
	SuppressReverseSync: true,
}

// UpdateRoomBooking edits a booking directly, e.g. from the room calendar,
// and pushes the data (never the state) back onto its event. A booking whose
// event has disappeared is detached and reconciled like a legacy booking.
func (s *Service) UpdateRoomBooking(ctx context.Context, id string, patch BookingPatch, actorID string) (*model.RoomBooking, error) {
	switch {
	case patch.Interval != nil && !patch.Interval.Valid():
		return nil, model.NewValidationError("UpdateRoomBooking", "end must be after start")
	case patch.Subject != nil && strings.TrimSpace(*patch.Subject) == "":
		return nil, model.NewValidationError("UpdateRoomBooking", "subject is blank")
	}

	var rb *model.RoomBooking
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		var err error
		if rb, err = model.GetRoomBooking(ctx, tx, id); err != nil {
			return err
		}
		if err := authorizeBooking(ctx, tx, rb, patch, actorID); err != nil {
			return err
		}

		timeChanged := false
		if patch.Subject != nil {
			rb.Subject = strings.TrimSpace(*patch.Subject)
		}
		if patch.Description != nil {
			rb.Description = *patch.Description
		}
		if patch.Interval != nil && (patch.Interval.Start.Unix() != rb.StartDate || patch.Interval.End.Unix() != rb.EndDate) {
			rb.SetInterval(*patch.Interval)
			timeChanged = true
		}
		if patch.AttendeeIDs != nil {
			if _, err := model.GetUsers(ctx, tx, *patch.AttendeeIDs); err != nil {
				return refError("UpdateRoomBooking", err)
			}
			rb.AttendeeIDs = slices.Clone(*patch.AttendeeIDs)
		}

		if err := roomsync.SaveBooking(ctx, tx, rb, model.SyncOptions{}); err != nil {
			return err
		}
		if rb.EventID == "" {
			return nil
		}

		ev, err := roomsync.Reverse(ctx, tx, rb)
		var syncErr *model.SyncInconsistencyError
		switch {
		case errors.As(err, &syncErr):
			slog.Warn("room booking lost its event, reconciling", "error", syncErr)
			rb.EventID = ""
			outcome, err := roomsync.ReconcileBooking(ctx, tx, rb)
			if err != nil {
				return err
			}
			slog.Info("room booking reconciled", "booking_id", rb.ID, "event_id", rb.EventID, "outcome", outcome)
			return nil
		case err != nil:
			return err
		}

		if err := ev.LoadRelations(ctx, tx); err != nil {
			return refError("UpdateRoomBooking", err)
		}
		if timeChanged {
			ev.Version++
			if ev.HasExternalMeeting() {
				u.retire(ev)
			}
		}
		if err := conflict.CheckEvent(ctx, tx, ev, reverseWrite); err != nil {
			return err
		}
		if ev.State == model.StateConfirm {
			if err := s.autoAttach(ctx, ev, u); err != nil {
				return err
			}
		}
		return save(ctx, tx, ev, reverseWrite, u)
	})
	if err != nil {
		return nil, err
	}
	return rb, nil
}

func authorizeBooking(ctx context.Context, db bun.IDB, rb *model.RoomBooking, patch BookingPatch, actorID string) error {
	required := scopeContent
	if patch.Interval != nil || patch.AttendeeIDs != nil {
		required = scopeSchedule
	}
	if rb.EventID != "" {
		ev, err := model.GetEvent(ctx, db, rb.EventID)
		switch {
		case err == nil:
			return authorize(ctx, db, "UpdateRoomBooking", ev, actorID, required)
		case !errors.Is(err, model.ErrNotFound):
			return err
		}
	}

	// legacy booking: the booking's own creator stands in for the host
	stand := &model.Event{ID: rb.EventID, HostID: rb.CreatedBy, CreatedBy: rb.CreatedBy, AttendeeIDs: rb.AttendeeIDs}
	return authorize(ctx, db, "UpdateRoomBooking", stand, actorID, required)
}

type GuestRequest struct {
	HostID     string
	Subject    string
	Interval   model.Interval
	GuestName  string
	GuestEmail string
}

// RequestGuestBooking is the booking portal's submit: the host's calendar is
// checked once more, then a draft event is created for the host to confirm.
func (s *Service) RequestGuestBooking(ctx context.Context, req GuestRequest) (*model.Event, error) {
	switch {
	case !req.Interval.Valid():
		return nil, model.NewValidationError("RequestGuestBooking", "end must be after start")
	case !req.Interval.Start.After(s.now()):
		return nil, model.NewValidationError("RequestGuestBooking", "slot is in the past")
	case strings.TrimSpace(req.GuestName) == "":
		return nil, model.NewValidationError("RequestGuestBooking", "guest name is blank")
	}
	if _, err := mail.ParseAddress(req.GuestEmail); err != nil {
		return nil, model.NewValidationError("RequestGuestBooking", "guest email is invalid: %v", err)
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Meeting with %s", strings.TrimSpace(req.GuestName))
	}

	var ev *model.Event
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		host, err := model.GetUser(ctx, tx, req.HostID)
		if err != nil {
			return refError("RequestGuestBooking", err)
		}
		conflicts, err := conflict.Find(ctx, tx, conflict.Query{
			Interval:    req.Interval,
			Dimension:   model.DimensionAttendee,
			ResourceKey: host.ID,
		})
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return conflict.AsError(ctx, tx, conflicts[0])
		}

		ev = &model.Event{
			ID:          uuid.NewString(),
			Subject:     subject,
			Description: fmt.Sprintf("Requested by %s <%s>", strings.TrimSpace(req.GuestName), req.GuestEmail),
			State:       model.StateDraft,
			HostID:      host.ID,
			CreatedBy:   host.ID,
			GuestName:   strings.TrimSpace(req.GuestName),
			GuestEmail:  req.GuestEmail,
		}
		ev.SetInterval(req.Interval)
		u.to = model.StateDraft
		return ev.Upsert(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ReconcileLegacy gives every orphan room booking a parent event.
func (s *Service) ReconcileLegacy(ctx context.Context) (roomsync.ReconcileResult, error) {
	var result roomsync.ReconcileResult
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, u *unit) error {
		var err error
		result, err = roomsync.ReconcileLegacy(ctx, tx)
		return err
	})
	return result, err
}
