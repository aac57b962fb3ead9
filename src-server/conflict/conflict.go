package conflict

import (
	"context"
	"fmt"
	"slices"

	"meetroom/src-server/model"

	"github.com/uptrace/bun"
)

// Query asks for confirmed bookings of one resource overlapping Interval.
type Query struct {
	Interval    model.Interval
	Dimension   model.Dimension
	ResourceKey string

	// the event being checked, and everything derived from it
	ExcludeEventID string
	// individual room bookings to ignore, e.g. the orphan being reconciled
	ExcludeBookingIDs []string
}

type Conflict struct {
	Dimension   model.Dimension
	ResourceKey string
	EventID     string // blank for a legacy booking
	BookingID   string // blank when the event itself collided
	Subject     string
	Interval    model.Interval
}

// Overlaps is the half-open overlap rule on unix seconds.
func Overlaps(startA, endA, startB, endB int64) bool {
	return startA < endB && endA > startB
}

// Find lists confirmed records holding q.ResourceKey during q.Interval.
// Drafts and cancelled records never conflict.
func Find(ctx context.Context, db bun.IDB, q Query) ([]Conflict, error) {
	if q.ResourceKey == "" {
		return nil, nil
	}
	if !q.Interval.Valid() {
		return nil, model.NewValidationError("conflict.Find", "interval end must be after start")
	}
	start, end := q.Interval.Start.Unix(), q.Interval.End.Unix()

	events := []*model.Event{}
	query := db.NewSelect().
		Model(&events).
		Where("ev.state = ?", model.StateConfirm).
		Where("ev.start_date < ?", end).
		Where("ev.end_date > ?", start).
		OrderExpr("ev.start_date ASC, ev.id ASC")
	switch q.Dimension {
	case model.DimensionLocation:
		query = query.Join("JOIN event_locations AS el ON el.event_id = ev.id").
			Where("el.location_id = ?", q.ResourceKey)
	case model.DimensionVirtualAccount:
		query = query.Where("ev.virtual_account_id = ?", q.ResourceKey)
	case model.DimensionAttendee:
		query = query.Join("JOIN event_attendees AS ea ON ea.event_id = ev.id").
			Where("ea.user_id = ?", q.ResourceKey)
	default:
		return nil, fmt.Errorf("conflict.Find: unknown dimension %q", q.Dimension)
	}
	if q.ExcludeEventID != "" {
		query = query.Where("ev.id != ?", q.ExcludeEventID)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("conflict.Find: %w", err)
	}

	conflicts := make([]Conflict, 0, len(events))
	seenEvents := make(map[string]struct{}, len(events))
	for _, ev := range events {
		seenEvents[ev.ID] = struct{}{}
		conflicts = append(conflicts, Conflict{
			Dimension:   q.Dimension,
			ResourceKey: q.ResourceKey,
			EventID:     ev.ID,
			Subject:     ev.Subject,
			Interval:    ev.Interval(),
		})
	}

	if q.Dimension != model.DimensionLocation {
		return conflicts, nil
	}

	// Room bookings also hold the room, including legacy ones without an event.
	bookings := []*model.RoomBooking{}
	bookingQuery := db.NewSelect().
		Model(&bookings).
		Where("rb.location_id = ?", q.ResourceKey).
		Where("rb.state = ?", model.StateConfirm).
		Where("rb.start_date < ?", end).
		Where("rb.end_date > ?", start).
		OrderExpr("rb.start_date ASC, rb.id ASC")
	if q.ExcludeEventID != "" {
		bookingQuery = bookingQuery.Where("(rb.event_id IS NULL OR rb.event_id != ?)", q.ExcludeEventID)
	}
	if len(q.ExcludeBookingIDs) > 0 {
		bookingQuery = bookingQuery.Where("rb.id NOT IN (?)", bun.In(q.ExcludeBookingIDs))
	}
	if err := bookingQuery.Scan(ctx); err != nil {
		return nil, fmt.Errorf("conflict.Find: %w", err)
	}
	for _, rb := range bookings {
		if _, ok := seenEvents[rb.EventID]; ok && rb.EventID != "" {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Dimension:   q.Dimension,
			ResourceKey: q.ResourceKey,
			EventID:     rb.EventID,
			BookingID:   rb.ID,
			Subject:     rb.Subject,
			Interval:    rb.Interval(),
		})
	}
	return conflicts, nil
}

// CheckEvent validates a confirmed event against every resource it holds:
// its locations, its virtual account, then its attendees. The first collision
// is returned as a *model.ConflictError. Events that are not confirmed, and
// callers that suppress the check, always pass.
func CheckEvent(ctx context.Context, db bun.IDB, ev *model.Event, opts model.SyncOptions, excludeBookingIDs ...string) error {
	if opts.SuppressConflictCheck || ev.State != model.StateConfirm {
		return nil
	}

	type resource struct {
		dimension model.Dimension
		key       string
	}
	resources := []resource{}
	locations := slices.Clone(ev.LocationIDs)
	slices.Sort(locations)
	for _, id := range locations {
		resources = append(resources, resource{model.DimensionLocation, id})
	}
	if ev.VirtualAccountID != "" {
		resources = append(resources, resource{model.DimensionVirtualAccount, ev.VirtualAccountID})
	}
	attendees := slices.Clone(ev.AttendeeIDs)
	if !slices.Contains(attendees, ev.HostID) {
		attendees = append(attendees, ev.HostID)
	}
	slices.Sort(attendees)
	for _, id := range attendees {
		resources = append(resources, resource{model.DimensionAttendee, id})
	}

	for _, r := range resources {
		conflicts, err := Find(ctx, db, Query{
			Interval:          ev.Interval(),
			Dimension:         r.dimension,
			ResourceKey:       r.key,
			ExcludeEventID:    ev.ID,
			ExcludeBookingIDs: excludeBookingIDs,
		})
		if err != nil {
			return fmt.Errorf("conflict.CheckEvent: %w", err)
		}
		if len(conflicts) > 0 {
			return AsError(ctx, db, conflicts[0])
		}
	}
	return nil
}

// CheckBooking validates a single confirmed room booking against its room.
func CheckBooking(ctx context.Context, db bun.IDB, rb *model.RoomBooking, opts model.SyncOptions) error {
	if opts.SuppressConflictCheck || rb.State != model.StateConfirm {
		return nil
	}
	conflicts, err := Find(ctx, db, Query{
		Interval:          rb.Interval(),
		Dimension:         model.DimensionLocation,
		ResourceKey:       rb.LocationID,
		ExcludeEventID:    rb.EventID,
		ExcludeBookingIDs: []string{rb.ID},
	})
	if err != nil {
		return fmt.Errorf("conflict.CheckBooking: %w", err)
	}
	if len(conflicts) > 0 {
		return AsError(ctx, db, conflicts[0])
	}
	return nil
}

// AsError turns a found conflict into the error returned to callers.
func AsError(ctx context.Context, db bun.IDB, c Conflict) *model.ConflictError {
	return &model.ConflictError{
		Dimension:          c.Dimension,
		ResourceKey:        c.ResourceKey,
		ResourceName:       resourceName(ctx, db, c.Dimension, c.ResourceKey),
		ConflictingEventID: c.EventID,
		ConflictingBooking: c.BookingID,
		ConflictingSubject: c.Subject,
		Start:              c.Interval.Start,
		End:                c.Interval.End,
	}
}

// resourceName is for the error message only; lookup failures fall back to
// the key.
func resourceName(ctx context.Context, db bun.IDB, dimension model.Dimension, key string) string {
	var (
		name string
		err  error
	)
	switch dimension {
	case model.DimensionLocation:
		var location *model.Location
		if location, err = model.GetLocation(ctx, db, key); err == nil {
			name = location.Name
		}
	case model.DimensionVirtualAccount:
		var account *model.VirtualAccount
		if account, err = model.GetVirtualAccount(ctx, db, key); err == nil {
			name = account.Name
		}
	case model.DimensionAttendee:
		var user *model.User
		if user, err = model.GetUser(ctx, db, key); err == nil {
			name = user.Name
		}
	}
	if err != nil || name == "" {
		return key
	}
	return name
}
