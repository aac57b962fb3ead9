package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"meetroom/src-server/model"
	"meetroom/src-server/provider"
	"meetroom/src-server/roomsync"
	"meetroom/src-server/tz"

	"github.com/uptrace/bun"
)

// Recorder receives counts of what the engine did. Only committed work is
// reported.
type Recorder interface {
	Transition(from, to model.State)
	Conflict(dimension model.Dimension)
	RoomSync(result roomsync.Result)
	ExternalFailure(provider, op string)
	ActivitiesRegenerated(n int)
}

type nopRecorder struct{}

func (nopRecorder) Transition(model.State, model.State) {}
func (nopRecorder) Conflict(model.Dimension) {}
func (nopRecorder) RoomSync(roomsync.Result) {}
func (nopRecorder) ExternalFailure(string, string) {}
func (nopRecorder) ActivitiesRegenerated(int) {}

type Service struct {
	db        *bun.DB
	providers *provider.Registry
	metrics   Recorder
	now       func() time.Time
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(db *bun.DB, providers *provider.Registry, opts ...Option) *Service {
	s := &Service{
		db:        db,
		providers: providers,
		metrics:   nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// unit collects the side effects of one transaction so they are applied only
// once it has committed.
type unit struct {
	from, to   model.State
	sync       roomsync.Result
	activities int

	// meeting to release after commit
	staleAccount *model.VirtualAccount
	staleMeeting string
	// meeting created inside the transaction, released if it rolls back
	newAccount *model.VirtualAccount
	newMeeting string
}

func (u *unit) retire(ev *model.Event) {
	if ev.ExternalMeetingID != "" && ev.VirtualAccount != nil {
		u.staleAccount = ev.VirtualAccount
		u.staleMeeting = ev.ExternalMeetingID
	}
	ev.ClearExternalMeeting()
}

func (s *Service) run(ctx context.Context, fn func(ctx context.Context, tx bun.Tx, u *unit) error) error {
	u := &unit{}
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx, u)
	})
	if err != nil {
		var conflictErr *model.ConflictError
		if errors.As(err, &conflictErr) {
			s.metrics.Conflict(conflictErr.Dimension)
		}
		var extErr *model.ExternalResourceError
		if errors.As(err, &extErr) {
			s.metrics.ExternalFailure(extErr.Provider, extErr.Op)
		}
		s.release(ctx, u.newAccount, u.newMeeting)
		return err
	}

	if u.to != "" && u.from != u.to {
		s.metrics.Transition(u.from, u.to)
	}
	if u.sync.Changed() {
		s.metrics.RoomSync(u.sync)
	}
	if u.activities > 0 {
		s.metrics.ActivitiesRegenerated(u.activities)
	}
	s.release(ctx, u.staleAccount, u.staleMeeting)
	return nil
}

// release deletes an external meeting. Failures are logged, never returned.
func (s *Service) release(ctx context.Context, account *model.VirtualAccount, meetingID string) {
	if meetingID == "" || account == nil {
		return
	}
	if err := s.providers.DeleteMeeting(ctx, account, meetingID); err != nil {
		var extErr *model.ExternalResourceError
		if errors.As(err, &extErr) {
			s.metrics.ExternalFailure(extErr.Provider, extErr.Op)
		}
		slog.Warn("can't delete external meeting", "provider", account.Provider, "meeting_id", meetingID, "error", err)
	}
}

// autoAttach creates the meeting for a confirmed event when its provider can
// do so unattended. Other providers wait for an explicit GenerateLink.
func (s *Service) autoAttach(ctx context.Context, ev *model.Event, u *unit) error {
	if ev.VirtualAccount == nil || ev.JoinURL != "" || !s.providers.CanGenerate(ev.VirtualAccount) {
		return nil
	}
	return s.attachMeeting(ctx, ev, u)
}

// attachMeeting creates the virtual meeting for ev. Errors are fatal to the
// calling operation.
func (s *Service) attachMeeting(ctx context.Context, ev *model.Event, u *unit) error {
	if ev.VirtualAccount == nil {
		return nil
	}
	hostTimezone := "UTC"
	if ev.Host != nil {
		hostTimezone = ev.Host.Timezone
	}
	result, err := s.providers.GenerateLink(ctx, provider.LinkRequest{
		EventID:     ev.ID,
		Subject:     ev.Subject,
		Description: ev.Description,
		Interval:    ev.Interval(),
		Timezone:    hostTimezone,
		Account:     ev.VirtualAccount,
	})
	if err != nil {
		return err
	}
	u.newAccount = ev.VirtualAccount
	u.newMeeting = result.MeetingID

	ev.ExternalMeetingID = result.MeetingID
	ev.JoinURL = result.JoinURL
	ev.StartURL = result.StartURL
	ev.MeetingPassword = result.Password
	ev.Invitation = provider.InvitationText(ev, ev.VirtualAccount, result, hostTimezone)
	return nil
}

// RecipientTimes is an event's interval as seen by one recipient.
type RecipientTimes struct {
	Start tz.Local
	End   tz.Local
}
