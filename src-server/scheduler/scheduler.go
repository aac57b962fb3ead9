package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"meetroom/src-server/activity"
	"meetroom/src-server/model"
	"meetroom/src-server/notify"

	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
)

type Recorder interface {
	ActivitiesPurged(n int64)
	RemindersDispatched(n int, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ActivitiesPurged(int64) {}
func (nopRecorder) RemindersDispatched(int, time.Duration) {}

type Options struct {
	// calendar day boundaries for the purge
	Location     *time.Location
	ReminderLead time.Duration
	PurgeSpec    string
	ReminderSpec string
	Metrics      Recorder
	Now          func() time.Time
}

type Scheduler struct {
	db       bun.IDB
	notifier notify.Notifier
	opts     Options
	cron     *cron.Cron
}

func New(db bun.IDB, notifier notify.Notifier, opts Options) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PurgeSpec == "" {
		opts.PurgeSpec = "@daily"
	}
	if opts.ReminderSpec == "" {
		opts.ReminderSpec = "@every 1m"
	}
	if opts.ReminderLead <= 0 {
		opts.ReminderLead = 15 * time.Minute
	}

	s := &Scheduler{
		db:       db,
		notifier: notifier,
		opts:     opts,
		cron:     cron.New(cron.WithLocation(opts.Location)),
	}
	if _, err := s.cron.AddFunc(opts.PurgeSpec, func() {
		n, err := s.PurgeActivities(context.Background())
		if err != nil {
			slog.Error("can't purge activities", "error", err)
			return
		}
		slog.Debug("activities purged", "count", n)
	}); err != nil {
		return nil, fmt.Errorf("scheduler.New: purge spec %q: %w", opts.PurgeSpec, err)
	}
	if _, err := s.cron.AddFunc(opts.ReminderSpec, func() {
		if _, err := s.DispatchReminders(context.Background()); err != nil {
			slog.Error("can't dispatch reminders", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("scheduler.New: reminder spec %q: %w", opts.ReminderSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("scheduler stopped before its jobs finished")
	}
}

// PurgeActivities drops entries whose deadline is before today.
func (s *Scheduler) PurgeActivities(ctx context.Context) (int64, error) {
	n, err := activity.PurgeStale(ctx, s.db, s.opts.Now(), s.opts.Location)
	if err != nil {
		return 0, fmt.Errorf("(*Scheduler).PurgeActivities: %w", err)
	}
	s.opts.Metrics.ActivitiesPurged(n)
	return n, nil
}

// DispatchReminders hands every activity starting within the lead time to
// the notifier and marks it dispatched once the notifier accepts it.
func (s *Scheduler) DispatchReminders(ctx context.Context) (int, error) {
	due, err := activity.Due(ctx, s.db, s.opts.Now(), s.opts.ReminderLead)
	if err != nil {
		return 0, fmt.Errorf("(*Scheduler).DispatchReminders: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	userIDs := []string{}
	for _, act := range due {
		userIDs = append(userIDs, act.UserID)
	}
	users := []model.User{}
	if err := s.db.NewSelect().
		Model(&users).
		Where("id IN (?)", bun.In(userIDs)).
		Scan(ctx); err != nil {
		return 0, fmt.Errorf("(*Scheduler).DispatchReminders: can't get users: %w", err)
	}
	byID := make(map[string]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	reminders := []notify.Reminder{}
	ids := []string{}
	for _, act := range due {
		user, ok := byID[act.UserID]
		if !ok {
			slog.Warn("reminder for unknown user", "user_id", act.UserID, "activity_id", act.ID)
			continue
		}
		reminders = append(reminders, notify.Reminder{Activity: act, User: user})
		ids = append(ids, act.ID)
	}
	if len(reminders) == 0 {
		return 0, nil
	}

	start := time.Now()
	if err := s.notifier.Notify(ctx, reminders); err != nil {
		return 0, fmt.Errorf("(*Scheduler).DispatchReminders: %w", err)
	}
	took := time.Since(start)
	if err := activity.MarkDispatched(ctx, s.db, ids); err != nil {
		return 0, fmt.Errorf("(*Scheduler).DispatchReminders: %w", err)
	}
	s.opts.Metrics.RemindersDispatched(len(ids), took)
	return len(ids), nil
}
