package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meetroom/src-server/model"
	"meetroom/src-server/tz"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	dateLabelLayout = "Jan 02, 2006"
	clockLayout     = "15:04"
	deadlineLayout  = "2006-01-02"
)

// Build renders the reminder for one attendee in that attendee's timezone.
// ev must have its locations and virtual account loaded.
func Build(ev *model.Event, attendee *model.User, now time.Time) model.Activity {
	interval := ev.Interval()
	start := tz.ToLocal(interval.Start, attendee.Timezone)
	end := tz.ToLocal(interval.End, attendee.Timezone)

	act := model.Activity{
		ID:              uuid.NewString(),
		EventID:         ev.ID,
		UserID:          attendee.ID,
		Deadline:        start.Time.Format(deadlineLayout),
		StartDate:       ev.StartDate,
		Subject:         ev.Subject,
		DateLabel:       start.Time.Format(dateLabelLayout),
		LocalStart:      start.Time.Format(clockLayout),
		LocalEnd:        end.Time.Format(clockLayout),
		TZName:          start.TZName,
		UTCRange:        fmt.Sprintf("%s-%s UTC", interval.Start.UTC().Format(clockLayout), interval.End.UTC().Format(clockLayout)),
		Duration:        FormatDuration(interval.Duration()),
		LocationSummary: LocationSummary(ev),
		CreatedAt:       now.UTC().Unix(),
	}

	sb := strings.Builder{}
	sb.WriteString("Meeting: " + act.Subject + "\n")
	sb.WriteString("Date: " + act.DateLabel + "\n")
	sb.WriteString(fmt.Sprintf("Time: %s-%s (%s)\n", act.LocalStart, act.LocalEnd, act.TZName))
	sb.WriteString("UTC: " + act.UTCRange + "\n")
	sb.WriteString("Duration: " + act.Duration + "\n")
	sb.WriteString("Location: " + act.LocationSummary)
	act.Note = sb.String()

	return act
}

// LocationSummary lists the rooms, or "Virtual" when there are none, followed
// by the join link or the virtual room name.
func LocationSummary(ev *model.Event) string {
	names := make([]string, 0, len(ev.Locations))
	for _, location := range ev.Locations {
		names = append(names, location.Name)
	}
	summary := "Virtual"
	if len(names) > 0 {
		summary = strings.Join(names, ", ")
	}
	switch {
	case ev.JoinURL != "":
		summary += " | Join: " + ev.JoinURL
	case ev.VirtualAccount != nil:
		summary += fmt.Sprintf(" (Virtual Room: %s)", ev.VirtualAccount.Name)
	}
	return summary
}

func FormatDuration(d time.Duration) string {
	totalMinutes := int(d.Round(time.Minute) / time.Minute)
	hours, minutes := totalMinutes/60, totalMinutes%60

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case hours > 0 && minutes > 0:
		return plural(hours, "hour") + " " + plural(minutes, "minute")
	case hours > 0:
		return plural(hours, "hour")
	default:
		return plural(minutes, "minute")
	}
}

// Regenerate replaces the event's reminders with one per attendee. Skipped
// entirely under opts.SkipActivities; non-confirmed events are left without
// reminders. Returns the number of reminders written.
func Regenerate(ctx context.Context, db bun.IDB, ev *model.Event, opts model.SyncOptions) (int, error) {
	if opts.SkipActivities {
		return 0, nil
	}
	dispatched, err := dispatchedStarts(ctx, db, ev.ID)
	if err != nil {
		return 0, fmt.Errorf("activity.Regenerate: %w", err)
	}
	if err := Clear(ctx, db, ev.ID); err != nil {
		return 0, fmt.Errorf("activity.Regenerate: %w", err)
	}
	if ev.State != model.StateConfirm {
		return 0, nil
	}
	if ev.Attendees == nil {
		if err := ev.LoadRelations(ctx, db); err != nil {
			return 0, fmt.Errorf("activity.Regenerate: %w", err)
		}
	}
	if len(ev.Attendees) == 0 {
		return 0, nil
	}

	now := time.Now()
	activities := make([]model.Activity, 0, len(ev.Attendees))
	for _, attendee := range ev.Attendees {
		act := Build(ev, attendee, now)
		// a reminder already sent for this start is not sent again
		act.Dispatched = dispatched[reminderKey{act.UserID, act.StartDate}]
		activities = append(activities, act)
	}
	if _, err := db.NewInsert().
		Model(&activities).
		Exec(ctx); err != nil {
		return 0, fmt.Errorf("activity.Regenerate: %w", err)
	}
	return len(activities), nil
}

type reminderKey struct {
	userID string
	start  int64
}

func dispatchedStarts(ctx context.Context, db bun.IDB, eventID string) (map[reminderKey]bool, error) {
	activities := []model.Activity{}
	if err := db.NewSelect().
		Model(&activities).
		Column("user_id", "start_date").
		Where("event_id = ?", eventID).
		Where("dispatched = ?", true).
		Scan(ctx); err != nil {
		return nil, err
	}
	keys := make(map[reminderKey]bool, len(activities))
	for _, act := range activities {
		keys[reminderKey{act.UserID, act.StartDate}] = true
	}
	return keys, nil
}

func Clear(ctx context.Context, db bun.IDB, eventID string) error {
	if _, err := db.NewDelete().
		Model((*model.Activity)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx); err != nil {
		return fmt.Errorf("activity.Clear: %w", err)
	}
	return nil
}

func List(ctx context.Context, db bun.IDB, eventID string) ([]model.Activity, error) {
	activities := []model.Activity{}
	if err := db.NewSelect().
		Model(&activities).
		Where("event_id = ?", eventID).
		Order("user_id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("activity.List: %w", err)
	}
	return activities, nil
}

// PurgeStale deletes reminders whose deadline is before today, today being
// the calendar date of now in loc.
func PurgeStale(ctx context.Context, db bun.IDB, now time.Time, loc *time.Location) (int64, error) {
	today := now.In(loc).Format(deadlineLayout)
	res, err := db.NewDelete().
		Model((*model.Activity)(nil)).
		Where("deadline < ?", today).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("activity.PurgeStale: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("activity.PurgeStale: %w", err)
	}
	return affected, nil
}

// Due returns reminders not yet dispatched for meetings starting within lead
// of now.
func Due(ctx context.Context, db bun.IDB, now time.Time, lead time.Duration) ([]model.Activity, error) {
	activities := []model.Activity{}
	if err := db.NewSelect().
		Model(&activities).
		Where("dispatched = ?", false).
		Where("start_date >= ?", now.UTC().Unix()).
		Where("start_date <= ?", now.Add(lead).UTC().Unix()).
		Order("start_date ASC", "user_id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("activity.Due: %w", err)
	}
	return activities, nil
}

func MarkDispatched(ctx context.Context, db bun.IDB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := db.NewUpdate().
		Model((*model.Activity)(nil)).
		Set("dispatched = ?", true).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx); err != nil {
		return fmt.Errorf("activity.MarkDispatched: %w", err)
	}
	return nil
}
