package roomsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"meetroom/src-server/conflict"
	"meetroom/src-server/model"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Outcome int

const (
	OutcomeSkipped     Outcome = iota // no usable host
	OutcomeLinked                     // attached to an existing event
	OutcomeSynthesized                // new event in the booking's state
	OutcomeDrafted                    // new event demoted to draft because it conflicts
)

type ReconcileResult struct {
	Linked      int
	Synthesized int
	Drafted     int
	Skipped     int
}

var legacyWrite = model.SyncOptions{
	Direction:             model.SyncLegacy,
	SuppressConflictCheck: true,
	SuppressForwardSync:   true,
	SuppressReverseSync:   true,
	SkipActivities:        true,
}

// NormalizeSubject makes subjects comparable: NFC, case folded, inner
// whitespace collapsed.
func NormalizeSubject(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.Join(strings.Fields(s), " ")))
}

// ReconcileLegacy gives every orphan booking a parent event.
func ReconcileLegacy(ctx context.Context, db bun.IDB) (ReconcileResult, error) {
	var result ReconcileResult
	orphans, err := model.ListOrphanBookings(ctx, db)
	if err != nil {
		return result, fmt.Errorf("roomsync.ReconcileLegacy: %w", err)
	}
	for _, rb := range orphans {
		outcome, err := ReconcileBooking(ctx, db, rb)
		if err != nil {
			return result, fmt.Errorf("roomsync.ReconcileLegacy: booking %s: %w", rb.ID, err)
		}
		switch outcome {
		case OutcomeLinked:
			result.Linked++
		case OutcomeSynthesized:
			result.Synthesized++
		case OutcomeDrafted:
			result.Drafted++
		default:
			result.Skipped++
		}
	}
	return result, nil
}

// ReconcileBooking links rb to an event with the same subject and interval,
// or synthesises one. A synthesised event that would collide with confirmed
// data is created in draft, and the booking with it.
func ReconcileBooking(ctx context.Context, db bun.IDB, rb *model.RoomBooking) (Outcome, error) {
	match, err := findMatch(ctx, db, rb)
	if err != nil {
		return OutcomeSkipped, err
	}
	if match != nil {
		if !slices.Contains(match.LocationIDs, rb.LocationID) {
			if _, err := db.NewInsert().
				Model(&model.EventLocation{EventID: match.ID, LocationID: rb.LocationID}).
				Exec(ctx); err != nil {
				return OutcomeSkipped, fmt.Errorf("can't link location: %w", err)
			}
		}
		rb.EventID = match.ID
		if rb.State != match.State {
			slog.Warn("legacy booking takes the state of its matched event",
				"booking_id", rb.ID, "event_id", match.ID, "from", rb.State, "to", match.State)
			rb.State = match.State
		}
		if err := SaveBooking(ctx, db, rb, legacyWrite); err != nil {
			return OutcomeSkipped, err
		}
		slog.Info("legacy booking linked", "booking_id", rb.ID, "event_id", match.ID)
		return OutcomeLinked, nil
	}

	hostID, err := legacyHost(ctx, db, rb)
	if err != nil {
		return OutcomeSkipped, err
	}
	if hostID == "" {
		slog.Warn("legacy booking has no usable host, leaving it orphaned", "booking_id", rb.ID)
		return OutcomeSkipped, nil
	}

	ev := &model.Event{
		ID:               uuid.NewString(),
		Subject:          rb.Subject,
		Description:      rb.Description,
		StartDate:        rb.StartDate,
		EndDate:          rb.EndDate,
		State:            rb.State,
		HostID:           hostID,
		CreatedBy:        hostID,
		VirtualAccountID: rb.VirtualAccountID,
		LocationIDs:      []string{rb.LocationID},
		AttendeeIDs:      slices.Clone(rb.AttendeeIDs),
		Version:          rb.Version,
	}

	outcome := OutcomeSynthesized
	err = conflict.CheckEvent(ctx, db, ev, model.SyncOptions{Direction: model.SyncLegacy}, rb.ID)
	var conflictErr *model.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		slog.Warn("legacy booking conflicts with confirmed data, synthesising a draft",
			"booking_id", rb.ID, "error", conflictErr)
		ev.State = model.StateDraft
		rb.State = model.StateDraft
		outcome = OutcomeDrafted
	case err != nil:
		return OutcomeSkipped, err
	}

	if err := ev.Upsert(ctx, db); err != nil {
		return OutcomeSkipped, err
	}
	rb.EventID = ev.ID
	if err := SaveBooking(ctx, db, rb, legacyWrite); err != nil {
		return OutcomeSkipped, err
	}
	slog.Info("event synthesised for legacy booking", "booking_id", rb.ID, "event_id", ev.ID, "state", ev.State)
	return outcome, nil
}

func findMatch(ctx context.Context, db bun.IDB, rb *model.RoomBooking) (*model.Event, error) {
	candidates := []*model.Event{}
	if err := db.NewSelect().
		Model(&candidates).
		Where("start_date = ?", rb.StartDate).
		Where("end_date = ?", rb.EndDate).
		Order("created_at ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("can't look up matching events: %w", err)
	}

	subject := NormalizeSubject(rb.Subject)
	var match *model.Event
	for _, candidate := range candidates {
		if NormalizeSubject(candidate.Subject) != subject {
			continue
		}
		if match == nil || matchRank(candidate.State) > matchRank(match.State) {
			match = candidate
		}
	}
	if match == nil {
		return nil, nil
	}
	return model.GetEvent(ctx, db, match.ID)
}

// matchRank orders candidate parents: confirmed, then draft, then cancelled.
func matchRank(state model.State) int {
	switch state {
	case model.StateConfirm:
		return 2
	case model.StateDraft:
		return 1
	}
	return 0
}

// legacyHost is the booking's creator, else its first known attendee.
func legacyHost(ctx context.Context, db bun.IDB, rb *model.RoomBooking) (string, error) {
	candidates := append([]string{rb.CreatedBy}, rb.AttendeeIDs...)
	for _, id := range candidates {
		if id == "" {
			continue
		}
		if _, err := model.GetUser(ctx, db, id); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return "", err
		}
		return id, nil
	}
	return "", nil
}
