package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// RoomBooking is the per-location projection of an Event. EventID is blank
// for legacy bookings created before events existed.
type RoomBooking struct {
	bun.BaseModel `bun:"table:room_bookings,alias:rb"`

	ID               string `bun:"id,pk,notnull"`
	EventID          string `bun:"event_id,nullzero"`
	LocationID       string `bun:"location_id,notnull"`
	Subject          string `bun:"subject,notnull"`
	Description      string `bun:"description"`
	StartDate        int64  `bun:"start_date,notnull"`
	EndDate          int64  `bun:"end_date,notnull"`
	State            State  `bun:"state,notnull"`
	VirtualAccountID string `bun:"virtual_account_id,nullzero"`
	CreatedBy        string `bun:"created_by,nullzero"`
	Version          int    `bun:"version,notnull"`
	CreatedAt        int64  `bun:"created_at,notnull"`
	UpdatedAt        int64  `bun:"updated_at"`

	AttendeeIDs []string `bun:"-"`
}

func (rb *RoomBooking) Interval() Interval {
	return NewInterval(rb.StartDate, rb.EndDate)
}

func (rb *RoomBooking) SetInterval(i Interval) {
	rb.StartDate = i.Start.Unix()
	rb.EndDate = i.End.Unix()
}

func (rb *RoomBooking) Upsert(ctx context.Context, db bun.IDB) error {
	switch {
	case rb.ID == "":
		return fmt.Errorf("(*RoomBooking).Upsert: booking id is blank")
	case rb.LocationID == "":
		return NewValidationError("(*RoomBooking).Upsert", "location is blank")
	case strings.TrimSpace(rb.Subject) == "":
		return NewValidationError("(*RoomBooking).Upsert", "subject is blank")
	case rb.EndDate <= rb.StartDate:
		return NewValidationError("(*RoomBooking).Upsert", "end date must be after start date")
	case !rb.State.Valid():
		return NewValidationError("(*RoomBooking).Upsert", "unknown state %q", rb.State)
	}
	rb.AttendeeIDs = dedupe(rb.AttendeeIDs)

	exists, err := db.NewSelect().
		Model((*RoomBooking)(nil)).
		Where("id = ?", rb.ID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("(*RoomBooking).Upsert: %w", err)
	}

	switch exists {
	case true:
		rb.UpdatedAt = time.Now().UTC().Unix()
		if _, err := db.NewUpdate().
			Model(rb).
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("(*RoomBooking).Upsert: %w", err)
		}
	case false:
		if rb.CreatedAt == 0 {
			rb.CreatedAt = time.Now().UTC().Unix()
		}
		if _, err := db.NewInsert().
			Model(rb).
			Exec(ctx); err != nil {
			return fmt.Errorf("(*RoomBooking).Upsert: %w", err)
		}
	}

	if _, err := db.NewDelete().
		Model((*RoomBookingAttendee)(nil)).
		Where("booking_id = ?", rb.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*RoomBooking).Upsert: can't clear attendees: %w", err)
	}
	if len(rb.AttendeeIDs) > 0 {
		links := make([]RoomBookingAttendee, len(rb.AttendeeIDs))
		for i, id := range rb.AttendeeIDs {
			links[i] = RoomBookingAttendee{BookingID: rb.ID, UserID: id}
		}
		if _, err := db.NewInsert().Model(&links).Exec(ctx); err != nil {
			return fmt.Errorf("(*RoomBooking).Upsert: can't link attendees: %w", err)
		}
	}
	return nil
}

func GetRoomBooking(ctx context.Context, db bun.IDB, id string) (*RoomBooking, error) {
	rb := new(RoomBooking)
	if err := db.NewSelect().
		Model(rb).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetRoomBooking: %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("GetRoomBooking: %w", err)
	}
	if err := loadBookingAttendees(ctx, db, []*RoomBooking{rb}); err != nil {
		return nil, fmt.Errorf("GetRoomBooking: %w", err)
	}
	return rb, nil
}

// ListDerivedBookings returns every booking of the event, oldest first.
func ListDerivedBookings(ctx context.Context, db bun.IDB, eventID string) ([]*RoomBooking, error) {
	bookings := []*RoomBooking{}
	if err := db.NewSelect().
		Model(&bookings).
		Where("event_id = ?", eventID).
		Order("created_at ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListDerivedBookings: %w", err)
	}
	if err := loadBookingAttendees(ctx, db, bookings); err != nil {
		return nil, fmt.Errorf("ListDerivedBookings: %w", err)
	}
	return bookings, nil
}

// ListOrphanBookings returns bookings without a parent event.
func ListOrphanBookings(ctx context.Context, db bun.IDB) ([]*RoomBooking, error) {
	bookings := []*RoomBooking{}
	if err := db.NewSelect().
		Model(&bookings).
		Where("event_id IS NULL").
		Order("start_date ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListOrphanBookings: %w", err)
	}
	if err := loadBookingAttendees(ctx, db, bookings); err != nil {
		return nil, fmt.Errorf("ListOrphanBookings: %w", err)
	}
	return bookings, nil
}

func loadBookingAttendees(ctx context.Context, db bun.IDB, bookings []*RoomBooking) error {
	if len(bookings) == 0 {
		return nil
	}
	byID := make(map[string]*RoomBooking, len(bookings))
	ids := make([]string, len(bookings))
	for i, rb := range bookings {
		rb.AttendeeIDs = []string{}
		byID[rb.ID] = rb
		ids[i] = rb.ID
	}
	links := []RoomBookingAttendee{}
	if err := db.NewSelect().
		Model(&links).
		Where("booking_id IN (?)", bun.In(ids)).
		Order("user_id ASC").
		Scan(ctx); err != nil {
		return fmt.Errorf("can't get booking attendees: %w", err)
	}
	for _, link := range links {
		rb := byID[link.BookingID]
		rb.AttendeeIDs = append(rb.AttendeeIDs, link.UserID)
	}
	return nil
}
