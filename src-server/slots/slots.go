package slots

import (
	"context"
	"fmt"
	"time"

	"meetroom/src-server/conflict"
	"meetroom/src-server/model"
	"meetroom/src-server/tz"

	"github.com/uptrace/bun"
	"github.com/xyedo/rrule"
)

// Window is a run of working days in the host's timezone, starting on the
// calendar day of From.
type Window struct {
	From          time.Time
	Days          int
	WorkStartHour int
	WorkEndHour   int
}

func (w Window) validate(slot time.Duration) error {
	switch {
	case w.Days <= 0:
		return model.NewValidationError("ListFreeSlots", "days must be positive")
	case w.WorkStartHour < 0 || w.WorkEndHour > 24 || w.WorkStartHour >= w.WorkEndHour:
		return model.NewValidationError("ListFreeSlots", "working hours %d-%d are invalid", w.WorkStartHour, w.WorkEndHour)
	case slot <= 0:
		return model.NewValidationError("ListFreeSlots", "slot duration must be positive")
	case slot > time.Duration(w.WorkEndHour-w.WorkStartHour)*time.Hour:
		return model.NewValidationError("ListFreeSlots", "slot is longer than the working day")
	}
	return nil
}

// ListFreeSlots returns the host's bookable slots. The host's confirmed
// events for the whole window are read once and every candidate is checked
// in memory. Slots that have already started are left out.
func ListFreeSlots(ctx context.Context, db bun.IDB, hostID string, w Window, slot time.Duration, now time.Time) ([]model.Interval, error) {
	if err := w.validate(slot); err != nil {
		return nil, err
	}
	host, err := model.GetUser(ctx, db, hostID)
	if err != nil {
		return nil, fmt.Errorf("ListFreeSlots: %w", err)
	}
	loc, _ := tz.Resolve(host.Timezone)

	from := w.From.In(loc)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   w.Days,
		Dtstart: time.Date(from.Year(), from.Month(), from.Day(), w.WorkStartHour, 0, 0, 0, loc),
	})
	if err != nil {
		return nil, fmt.Errorf("ListFreeSlots: %w", err)
	}
	days := rule.All()
	if len(days) == 0 {
		return []model.Interval{}, nil
	}

	last := days[len(days)-1]
	busy, err := conflict.Find(ctx, db, conflict.Query{
		Interval: model.Interval{
			Start: days[0],
			End:   time.Date(last.Year(), last.Month(), last.Day(), w.WorkEndHour, 0, 0, 0, loc),
		},
		Dimension:   model.DimensionAttendee,
		ResourceKey: host.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("ListFreeSlots: %w", err)
	}

	free := []model.Interval{}
	for _, day := range days {
		dayEnd := time.Date(day.Year(), day.Month(), day.Day(), w.WorkEndHour, 0, 0, 0, loc)
		for start := day; !start.Add(slot).After(dayEnd); start = start.Add(slot) {
			if !start.After(now) {
				continue
			}
			candidate := model.Interval{Start: start.UTC(), End: start.Add(slot).UTC()}
			if !overlapsAny(candidate, busy) {
				free = append(free, candidate)
			}
		}
	}
	return free, nil
}

func overlapsAny(candidate model.Interval, busy []conflict.Conflict) bool {
	for _, b := range busy {
		if candidate.Overlaps(b.Interval) {
			return true
		}
	}
	return false
}
