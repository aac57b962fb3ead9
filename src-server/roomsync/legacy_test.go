package roomsync_test

import (
	"context"
	"testing"
	"time"

	"meetroom/src-server/model"
	"meetroom/src-server/roomsync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func orphan(t *testing.T, db bun.IDB, subject, location string, start time.Time, state model.State, createdBy string) *model.RoomBooking {
	t.Helper()
	rb := &model.RoomBooking{
		ID:          uuid.NewString(),
		LocationID:  location,
		Subject:     subject,
		StartDate:   start.Unix(),
		EndDate:     start.Add(time.Hour).Unix(),
		State:       state,
		CreatedBy:   createdBy,
		AttendeeIDs: []string{"u"},
	}
	require.NoError(t, rb.Upsert(context.Background(), db))
	return rb
}

func TestReconcileLegacy(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	existing := confirmedEvent(t, db, "room-a")
	linked := orphan(t, db, "  Design   Review ", "room-b", nine, model.StateConfirm, "host")
	synthesized := orphan(t, db, "retro", "room-c", nine.Add(4*time.Hour), model.StateConfirm, "")
	drafted := orphan(t, db, "clashing standup", "room-a", nine.Add(30*time.Minute), model.StateConfirm, "host")
	skipped := orphan(t, db, "ghost", "room-c", nine.Add(8*time.Hour), model.StateDraft, "nobody")
	_, err := db.NewDelete().
		Model((*model.RoomBookingAttendee)(nil)).
		Where("booking_id = ?", skipped.ID).
		Exec(ctx)
	require.NoError(t, err)

	result, err := roomsync.ReconcileLegacy(ctx, db)
	require.NoError(t, err)
	require.Equal(t, roomsync.ReconcileResult{Linked: 1, Synthesized: 1, Drafted: 1, Skipped: 1}, result)

	// case: matching subject and interval links to the existing event
	rb, err := model.GetRoomBooking(ctx, db, linked.ID)
	require.NoError(t, err)
	require.Equal(t, existing.ID, rb.EventID)
	ev, err := model.GetEvent(ctx, db, existing.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"room-a", "room-b"}, ev.LocationIDs)

	// case: host falls back to the first attendee
	rb, err = model.GetRoomBooking(ctx, db, synthesized.ID)
	require.NoError(t, err)
	ev, err = model.GetEvent(ctx, db, rb.EventID)
	require.NoError(t, err)
	require.Equal(t, "u", ev.HostID)
	require.Equal(t, model.StateConfirm, ev.State)
	require.Equal(t, []string{"room-c"}, ev.LocationIDs)

	// case: a colliding orphan becomes a draft event, never a confirmed one
	rb, err = model.GetRoomBooking(ctx, db, drafted.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateDraft, rb.State)
	ev, err = model.GetEvent(ctx, db, rb.EventID)
	require.NoError(t, err)
	require.Equal(t, model.StateDraft, ev.State)

	// case: no host at all stays orphaned
	orphans, err := model.ListOrphanBookings(ctx, db)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, skipped.ID, orphans[0].ID)

	// case: running again only sees the skipped one
	result, err = roomsync.ReconcileLegacy(ctx, db)
	require.NoError(t, err)
	require.Equal(t, roomsync.ReconcileResult{Skipped: 1}, result)
}

func TestReconcileLegacyFollowsMatchedState(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	event := func(start time.Time, state model.State) *model.Event {
		ev := &model.Event{
			ID:          uuid.NewString(),
			Subject:     "design review",
			State:       state,
			HostID:      "host",
			AttendeeIDs: []string{"u"},
		}
		ev.SetInterval(model.Interval{Start: start, End: start.Add(time.Hour)})
		require.NoError(t, ev.Upsert(ctx, db))
		return ev
	}

	// only unconfirmed parents exist: the booking is demoted with them
	event(nine, model.StateCancel)
	draft := event(nine, model.StateDraft)
	demoted := orphan(t, db, "Design Review", "room-b", nine, model.StateConfirm, "host")

	// a confirmed parent wins over an older draft
	later := nine.Add(3 * time.Hour)
	event(later, model.StateDraft)
	confirmed := event(later, model.StateConfirm)
	kept := orphan(t, db, "design review", "room-c", later, model.StateConfirm, "host")

	result, err := roomsync.ReconcileLegacy(ctx, db)
	require.NoError(t, err)
	require.Equal(t, roomsync.ReconcileResult{Linked: 2}, result)

	rb, err := model.GetRoomBooking(ctx, db, demoted.ID)
	require.NoError(t, err)
	require.Equal(t, draft.ID, rb.EventID)
	require.Equal(t, model.StateDraft, rb.State)

	rb, err = model.GetRoomBooking(ctx, db, kept.ID)
	require.NoError(t, err)
	require.Equal(t, confirmed.ID, rb.EventID)
	require.Equal(t, model.StateConfirm, rb.State)
}

func TestNormalizeSubject(t *testing.T) {
	require.Equal(t, roomsync.NormalizeSubject("Café  Sync"), roomsync.NormalizeSubject(" café sync "))
	require.NotEqual(t, roomsync.NormalizeSubject("sync"), roomsync.NormalizeSubject("sync 2"))
}
