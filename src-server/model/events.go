package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:ev"`

	ID          string `bun:"id,pk,notnull"`
	Subject     string `bun:"subject,notnull"`
	Description string `bun:"description"`

	StartDate int64 `bun:"start_date,notnull"` // unix seconds, UTC
	EndDate   int64 `bun:"end_date,notnull"`   // unix seconds, UTC
	State     State `bun:"state,notnull"`

	HostID           string `bun:"host_id,notnull"`
	CreatedBy        string `bun:"created_by,notnull"`
	VirtualAccountID string `bun:"virtual_account_id,nullzero"`

	// virtual meeting materialised by a provider
	ExternalMeetingID string `bun:"external_meeting_id"`
	JoinURL           string `bun:"join_url"`
	StartURL          string `bun:"start_url"`
	MeetingPassword   string `bun:"meeting_password"`
	Invitation        string `bun:"invitation"`

	// booking portal requests
	GuestName  string `bun:"guest_name"`
	GuestEmail string `bun:"guest_email"`

	ReminderMinutes int   `bun:"reminder_minutes"`
	Version         int   `bun:"version,notnull"` // ICS SEQUENCE
	CreatedAt       int64 `bun:"created_at,notnull"`
	UpdatedAt       int64 `bun:"updated_at"`

	LocationIDs []string `bun:"-"`
	AttendeeIDs []string `bun:"-"`

	// filled by LoadEvent
	Host           *User           `bun:"-"`
	Locations      []*Location     `bun:"-"`
	Attendees      []*User         `bun:"-"`
	VirtualAccount *VirtualAccount `bun:"-"`
}

type EventLocation struct {
	bun.BaseModel `bun:"table:event_locations,alias:el"`

	EventID    string `bun:"event_id,pk,notnull"`
	LocationID string `bun:"location_id,pk,notnull"`
}

func (e *Event) Interval() Interval {
	return NewInterval(e.StartDate, e.EndDate)
}

func (e *Event) SetInterval(i Interval) {
	e.StartDate = i.Start.Unix()
	e.EndDate = i.End.Unix()
}

func (e *Event) HasAttendee(userID string) bool {
	return slices.Contains(e.AttendeeIDs, userID)
}

func (e *Event) HasExternalMeeting() bool {
	return e.ExternalMeetingID != "" || e.JoinURL != ""
}

func (e *Event) ClearExternalMeeting() {
	e.ExternalMeetingID = ""
	e.JoinURL = ""
	e.StartURL = ""
	e.MeetingPassword = ""
	e.Invitation = ""
}

// Upsert writes the event row and replaces its location and attendee links.
// The host is always kept among the attendees.
func (e *Event) Upsert(ctx context.Context, db bun.IDB) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("(*Event).Upsert: event id is blank")
	case strings.TrimSpace(e.Subject) == "":
		return NewValidationError("(*Event).Upsert", "subject is blank")
	case e.HostID == "":
		return NewValidationError("(*Event).Upsert", "host is blank")
	case e.StartDate == 0:
		return NewValidationError("(*Event).Upsert", "start date is blank")
	case e.EndDate == 0:
		return NewValidationError("(*Event).Upsert", "end date is blank")
	case e.EndDate <= e.StartDate:
		return NewValidationError("(*Event).Upsert", "end date must be after start date")
	case !e.State.Valid():
		return NewValidationError("(*Event).Upsert", "unknown state %q", e.State)
	case e.JoinURL != "":
		if _, err := url.ParseRequestURI(e.JoinURL); err != nil {
			return NewValidationError("(*Event).Upsert", "join url is invalid: %v", err)
		}
	}
	if e.CreatedBy == "" {
		e.CreatedBy = e.HostID
	}
	e.LocationIDs = dedupe(e.LocationIDs)
	e.AttendeeIDs = dedupe(append([]string{e.HostID}, e.AttendeeIDs...))

	exists, err := db.NewSelect().
		Model((*Event)(nil)).
		Where("id = ?", e.ID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("(*Event).Upsert: %w", err)
	}

	switch exists {
	case true:
		e.UpdatedAt = time.Now().UTC().Unix()
		if _, err := db.NewUpdate().
			Model(e).
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("(*Event).Upsert: %w", err)
		}
	case false:
		if e.CreatedAt == 0 {
			e.CreatedAt = time.Now().UTC().Unix()
		}
		if _, err := db.NewInsert().
			Model(e).
			Exec(ctx); err != nil {
			return fmt.Errorf("(*Event).Upsert: %w", err)
		}
	}

	// #region links
	if _, err := db.NewDelete().
		Model((*EventLocation)(nil)).
		Where("event_id = ?", e.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Event).Upsert: can't clear locations: %w", err)
	}
	if len(e.LocationIDs) > 0 {
		links := make([]EventLocation, len(e.LocationIDs))
		for i, id := range e.LocationIDs {
			links[i] = EventLocation{EventID: e.ID, LocationID: id}
		}
		if _, err := db.NewInsert().Model(&links).Exec(ctx); err != nil {
			return fmt.Errorf("(*Event).Upsert: can't link locations: %w", err)
		}
	}

	if _, err := db.NewDelete().
		Model((*EventAttendee)(nil)).
		Where("event_id = ?", e.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Event).Upsert: can't clear attendees: %w", err)
	}
	attendees := make([]EventAttendee, len(e.AttendeeIDs))
	for i, id := range e.AttendeeIDs {
		attendees[i] = EventAttendee{EventID: e.ID, UserID: id}
	}
	if _, err := db.NewInsert().Model(&attendees).Exec(ctx); err != nil {
		return fmt.Errorf("(*Event).Upsert: can't link attendees: %w", err)
	}
	// #endregion

	return nil
}

// GetEvent reads the event row and its location/attendee ids.
func GetEvent(ctx context.Context, db bun.IDB, id string) (*Event, error) {
	ev := new(Event)
	if err := db.NewSelect().
		Model(ev).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetEvent: %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	if err := ev.loadLinks(ctx, db); err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	return ev, nil
}

// LoadEvent is GetEvent plus the referenced users, locations and virtual
// account.
func LoadEvent(ctx context.Context, db bun.IDB, id string) (*Event, error) {
	ev, err := GetEvent(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("LoadEvent: %w", err)
	}
	if err := ev.LoadRelations(ctx, db); err != nil {
		return nil, fmt.Errorf("LoadEvent: %w", err)
	}
	return ev, nil
}

func (e *Event) loadLinks(ctx context.Context, db bun.IDB) error {
	e.LocationIDs = []string{}
	if err := db.NewSelect().
		Model((*EventLocation)(nil)).
		Column("location_id").
		Where("event_id = ?", e.ID).
		Order("location_id ASC").
		Scan(ctx, &e.LocationIDs); err != nil {
		return fmt.Errorf("can't get location ids: %w", err)
	}
	e.AttendeeIDs = []string{}
	if err := db.NewSelect().
		Model((*EventAttendee)(nil)).
		Column("user_id").
		Where("event_id = ?", e.ID).
		Order("user_id ASC").
		Scan(ctx, &e.AttendeeIDs); err != nil {
		return fmt.Errorf("can't get attendee ids: %w", err)
	}
	return nil
}

func (e *Event) LoadRelations(ctx context.Context, db bun.IDB) error {
	var err error
	if e.Host, err = GetUser(ctx, db, e.HostID); err != nil {
		return fmt.Errorf("(*Event).LoadRelations: host: %w", err)
	}
	if e.Attendees, err = GetUsers(ctx, db, e.AttendeeIDs); err != nil {
		return fmt.Errorf("(*Event).LoadRelations: attendees: %w", err)
	}
	if e.Locations, err = GetLocations(ctx, db, e.LocationIDs); err != nil {
		return fmt.Errorf("(*Event).LoadRelations: locations: %w", err)
	}
	e.VirtualAccount = nil
	if e.VirtualAccountID != "" {
		if e.VirtualAccount, err = GetVirtualAccount(ctx, db, e.VirtualAccountID); err != nil {
			return fmt.Errorf("(*Event).LoadRelations: virtual account: %w", err)
		}
	}
	return nil
}

// Delete removes the event together with its links, activities and derived
// room bookings.
func (e *Event) Delete(ctx context.Context, db bun.IDB) error {
	bookingIDs := []string{}
	if err := db.NewSelect().
		Model((*RoomBooking)(nil)).
		Column("id").
		Where("event_id = ?", e.ID).
		Scan(ctx, &bookingIDs); err != nil {
		return fmt.Errorf("(*Event).Delete: can't get booking ids: %w", err)
	}
	if len(bookingIDs) > 0 {
		if _, err := db.NewDelete().
			Model((*RoomBookingAttendee)(nil)).
			Where("booking_id IN (?)", bun.In(bookingIDs)).
			Exec(ctx); err != nil {
			return fmt.Errorf("(*Event).Delete: can't delete booking attendees: %w", err)
		}
		if _, err := db.NewDelete().
			Model((*RoomBooking)(nil)).
			Where("id IN (?)", bun.In(bookingIDs)).
			Exec(ctx); err != nil {
			return fmt.Errorf("(*Event).Delete: can't delete bookings: %w", err)
		}
	}

	for _, m := range []interface{}{
		(*EventLocation)(nil),
		(*EventAttendee)(nil),
		(*Activity)(nil),
	} {
		if _, err := db.NewDelete().
			Model(m).
			Where("event_id = ?", e.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("(*Event).Delete: %w", err)
		}
	}

	if _, err := db.NewDelete().
		Model((*Event)(nil)).
		Where("id = ?", e.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Event).Delete: %w", err)
	}
	return nil
}
