package roomsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"meetroom/src-server/conflict"
	"meetroom/src-server/model"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Result counts what a forward sync did to the derived bookings.
type Result struct {
	Created   int
	Updated   int
	Cancelled int
}

func (r Result) Changed() bool {
	return r.Created+r.Updated+r.Cancelled > 0
}

// forwardWrite is how derived bookings are written: the event was already
// validated, and the write must not bounce back into the event.
var forwardWrite = model.SyncOptions{
	Direction:             model.SyncForward,
	SuppressConflictCheck: true,
	SuppressReverseSync:   true,
	SkipActivities:        true,
}

// Forward projects the event onto one booking per location. Existing derived
// bookings are matched by location: updated in place, created when missing,
// cancelled when their location was removed. Events that are not confirmed
// have all their bookings cancelled.
func Forward(ctx context.Context, db bun.IDB, ev *model.Event, opts model.SyncOptions) (Result, error) {
	var result Result
	if opts.SuppressForwardSync {
		return result, nil
	}
	if ev.State != model.StateConfirm {
		n, err := CancelDerived(ctx, db, ev.ID)
		result.Cancelled = n
		return result, err
	}

	existing, err := model.ListDerivedBookings(ctx, db, ev.ID)
	if err != nil {
		return result, fmt.Errorf("roomsync.Forward: %w", err)
	}

	// one booking per location; prefer a live one, else revive a cancelled one
	byLocation := make(map[string]*model.RoomBooking, len(existing))
	var stale []*model.RoomBooking
	for _, rb := range existing {
		current, ok := byLocation[rb.LocationID]
		switch {
		case !ok:
			byLocation[rb.LocationID] = rb
		case current.State == model.StateCancel && rb.State != model.StateCancel:
			byLocation[rb.LocationID] = rb
			stale = append(stale, current)
		default:
			stale = append(stale, rb)
		}
	}
	for _, rb := range stale {
		if rb.State == model.StateCancel {
			continue
		}
		slog.Warn("duplicate derived booking, cancelling",
			"error", &model.SyncInconsistencyError{EventID: ev.ID, BookingID: rb.ID, Msg: "more than one booking for location " + rb.LocationID})
		rb.State = model.StateCancel
		if err := SaveBooking(ctx, db, rb, forwardWrite); err != nil {
			return result, fmt.Errorf("roomsync.Forward: %w", err)
		}
		result.Cancelled++
	}

	for _, locationID := range ev.LocationIDs {
		rb, ok := byLocation[locationID]
		switch {
		case !ok:
			rb = &model.RoomBooking{
				ID:         uuid.NewString(),
				EventID:    ev.ID,
				LocationID: locationID,
				CreatedBy:  ev.CreatedBy,
			}
			project(ev, rb)
			result.Created++
		case project(ev, rb):
			result.Updated++
		default:
			continue
		}
		if err := SaveBooking(ctx, db, rb, forwardWrite); err != nil {
			return result, fmt.Errorf("roomsync.Forward: %w", err)
		}
	}

	for locationID, rb := range byLocation {
		if slices.Contains(ev.LocationIDs, locationID) || rb.State == model.StateCancel {
			continue
		}
		rb.State = model.StateCancel
		if err := SaveBooking(ctx, db, rb, forwardWrite); err != nil {
			return result, fmt.Errorf("roomsync.Forward: %w", err)
		}
		result.Cancelled++
	}

	return result, nil
}

// project copies the event's data onto rb and reports whether anything changed.
func project(ev *model.Event, rb *model.RoomBooking) bool {
	attendees := slices.Clone(ev.AttendeeIDs)
	slices.Sort(attendees)
	current := slices.Clone(rb.AttendeeIDs)
	slices.Sort(current)

	changed := rb.Subject != ev.Subject ||
		rb.Description != ev.Description ||
		rb.StartDate != ev.StartDate ||
		rb.EndDate != ev.EndDate ||
		rb.State != model.StateConfirm ||
		rb.VirtualAccountID != ev.VirtualAccountID ||
		rb.Version != ev.Version ||
		!slices.Equal(attendees, current)

	rb.Subject = ev.Subject
	rb.Description = ev.Description
	rb.StartDate = ev.StartDate
	rb.EndDate = ev.EndDate
	rb.State = model.StateConfirm
	rb.VirtualAccountID = ev.VirtualAccountID
	rb.Version = ev.Version
	rb.AttendeeIDs = attendees
	return changed
}

// CancelDerived cancels every live booking of the event.
func CancelDerived(ctx context.Context, db bun.IDB, eventID string) (int, error) {
	existing, err := model.ListDerivedBookings(ctx, db, eventID)
	if err != nil {
		return 0, fmt.Errorf("roomsync.CancelDerived: %w", err)
	}
	cancelled := 0
	for _, rb := range existing {
		if rb.State == model.StateCancel {
			continue
		}
		rb.State = model.StateCancel
		if err := SaveBooking(ctx, db, rb, forwardWrite); err != nil {
			return cancelled, fmt.Errorf("roomsync.CancelDerived: %w", err)
		}
		cancelled++
	}
	return cancelled, nil
}

// SaveBooking is the single write path for room bookings.
func SaveBooking(ctx context.Context, db bun.IDB, rb *model.RoomBooking, opts model.SyncOptions) error {
	if err := conflict.CheckBooking(ctx, db, rb, opts); err != nil {
		return err
	}
	if err := rb.Upsert(ctx, db); err != nil {
		return fmt.Errorf("roomsync.SaveBooking: %w", err)
	}
	return nil
}

// Reverse pushes a directly edited booking's data onto its parent event and
// returns the event unsaved. State is never pushed. A booking whose parent
// is gone yields a *model.SyncInconsistencyError.
func Reverse(ctx context.Context, db bun.IDB, rb *model.RoomBooking) (*model.Event, error) {
	if rb.EventID == "" {
		return nil, &model.SyncInconsistencyError{BookingID: rb.ID, Msg: "booking has no parent event"}
	}
	ev, err := model.GetEvent(ctx, db, rb.EventID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, &model.SyncInconsistencyError{EventID: rb.EventID, BookingID: rb.ID, Msg: "parent event is missing"}
		}
		return nil, fmt.Errorf("roomsync.Reverse: %w", err)
	}

	ev.Subject = rb.Subject
	ev.Description = rb.Description
	ev.StartDate = rb.StartDate
	ev.EndDate = rb.EndDate
	ev.AttendeeIDs = slices.Clone(rb.AttendeeIDs)
	return ev, nil
}
