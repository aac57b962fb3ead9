package model

import (
	"github.com/uptrace/bun"
)

type EventAttendee struct {
	bun.BaseModel `bun:"table:event_attendees,alias:ea"`

	EventID string `bun:"event_id,pk,notnull"`
	UserID  string `bun:"user_id,pk,notnull"`
}

type RoomBookingAttendee struct {
	bun.BaseModel `bun:"table:room_booking_attendees,alias:rba"`

	BookingID string `bun:"booking_id,pk,notnull"`
	UserID    string `bun:"user_id,pk,notnull"`
}
