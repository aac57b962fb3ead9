package engine

import (
	"context"
	"database/sql"
	"fmt"

	"meetroom/src-server/model"
	"meetroom/src-server/tz"

	"github.com/uptrace/bun"
)

// LocalTimesFor is what email/ICS collaborators render for one recipient:
// the event's interval in that user's own timezone.
func (s *Service) LocalTimesFor(ctx context.Context, eventID, userID string) (RecipientTimes, error) {
	ev, err := model.GetEvent(ctx, s.db, eventID)
	if err != nil {
		return RecipientTimes{}, fmt.Errorf("LocalTimesFor: %w", err)
	}
	user, err := model.GetUser(ctx, s.db, userID)
	if err != nil {
		return RecipientTimes{}, fmt.Errorf("LocalTimesFor: %w", err)
	}
	return timesIn(ev.Interval(), user.Timezone), nil
}

// LocationTimesFor renders a room booking in its room's timezone, falling
// back to the host's and then UTC.
func (s *Service) LocationTimesFor(ctx context.Context, bookingID string) (RecipientTimes, error) {
	rb, err := model.GetRoomBooking(ctx, s.db, bookingID)
	if err != nil {
		return RecipientTimes{}, fmt.Errorf("LocationTimesFor: %w", err)
	}
	location, err := model.GetLocation(ctx, s.db, rb.LocationID)
	if err != nil {
		return RecipientTimes{}, fmt.Errorf("LocationTimesFor: %w", err)
	}
	hostTimezone := ""
	if rb.EventID != "" {
		ev, err := model.GetEvent(ctx, s.db, rb.EventID)
		if err != nil {
			return RecipientTimes{}, fmt.Errorf("LocationTimesFor: %w", err)
		}
		host, err := model.GetUser(ctx, s.db, ev.HostID)
		if err != nil {
			return RecipientTimes{}, fmt.Errorf("LocationTimesFor: %w", err)
		}
		hostTimezone = host.Timezone
	}
	return timesIn(rb.Interval(), tz.Chain(location.Timezone, hostTimezone)), nil
}

func timesIn(interval model.Interval, tzName string) RecipientTimes {
	return RecipientTimes{
		Start: tz.ToLocal(interval.Start, tzName),
		End:   tz.ToLocal(interval.End, tzName),
	}
}

// NextCalendarSequence bumps and returns the event's version, used as the
// ICS SEQUENCE of a regenerated calendar entry.
func (s *Service) NextCalendarSequence(ctx context.Context, eventID string) (int, error) {
	var version int
	if err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*model.Event)(nil)).
			Set("version = version + 1").
			Where("id = ?", eventID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err != nil {
			return err
		} else if affected == 0 {
			return fmt.Errorf("%s: %w", eventID, model.ErrNotFound)
		}
		return tx.NewSelect().
			Model((*model.Event)(nil)).
			Column("version").
			Where("id = ?", eventID).
			Scan(ctx, &version)
	}); err != nil {
		return 0, fmt.Errorf("NextCalendarSequence: %w", err)
	}
	return version, nil
}
