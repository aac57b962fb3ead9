package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

func CreateSchema(ctx context.Context, db *bun.DB) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*User)(nil),
			(*Location)(nil),
			(*VirtualAccount)(nil),
			(*Event)(nil),
			(*EventLocation)(nil),
			(*EventAttendee)(nil),
			(*RoomBooking)(nil),
			(*RoomBookingAttendee)(nil),
			(*Activity)(nil),
		} {
			if _, err := tx.
				NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}

		for _, index := range []struct {
			model   interface{}
			name    string
			columns []string
		}{
			{(*Event)(nil), "events_state_time_idx", []string{"state", "start_date", "end_date"}},
			{(*EventLocation)(nil), "event_locations_location_idx", []string{"location_id"}},
			{(*EventAttendee)(nil), "event_attendees_user_idx", []string{"user_id"}},
			{(*RoomBooking)(nil), "room_bookings_location_idx", []string{"location_id", "state", "start_date"}},
			{(*RoomBooking)(nil), "room_bookings_event_idx", []string{"event_id"}},
			{(*Activity)(nil), "activities_event_idx", []string{"event_id"}},
		} {
			if _, err := tx.
				NewCreateIndex().
				Model(index.model).
				Index(index.name).
				IfNotExists().
				Column(index.columns...).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("CreateSchema: %w", err)
	}

	return nil
}
