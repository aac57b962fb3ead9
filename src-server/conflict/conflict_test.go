package conflict_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"meetroom/src-server/conflict"
	"meetroom/src-server/dbtest"
	"meetroom/src-server/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
}

func insertEvent(t *testing.T, db bun.IDB, state model.State, start, end time.Time, mutate func(*model.Event)) *model.Event {
	t.Helper()
	ev := &model.Event{
		ID:      uuid.NewString(),
		Subject: "event " + start.Format("15:04"),
		State:   state,
		HostID:  "host",
	}
	ev.SetInterval(model.Interval{Start: start, End: end})
	if mutate != nil {
		mutate(ev)
	}
	require.NoError(t, ev.Upsert(context.Background(), db))
	return ev
}

func setup(t *testing.T) *bun.DB {
	db := dbtest.New(t)
	fx := dbtest.Seed(t, db)
	fx.User("host", "")
	fx.User("other-host", "")
	fx.User("u", "Asia/Jakarta")
	fx.Location("room-a", "")
	fx.Location("room-b", "")
	fx.VirtualAccount("VirtualAccountX", "google_meet", "meet.google.com/abc-defg-hij")
	return db
}

func TestLocationTouchingEndpoints(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	inRoomA := func(ev *model.Event) { ev.LocationIDs = []string{"room-a"} }

	e1 := insertEvent(t, db, model.StateConfirm, at(9, 0), at(10, 0), inRoomA)

	e2 := insertEvent(t, db, model.StateDraft, at(9, 30), at(10, 30), inRoomA)
	e2.State = model.StateConfirm
	err := conflict.CheckEvent(ctx, db, e2, model.SyncOptions{})
	var conflictErr *model.ConflictError
	require.True(t, errors.As(err, &conflictErr), "got %v", err)
	require.Equal(t, model.DimensionLocation, conflictErr.Dimension)
	require.Equal(t, e1.Subject, conflictErr.ConflictingSubject)
	require.Equal(t, "room-a", conflictErr.ResourceName)

	e3 := insertEvent(t, db, model.StateDraft, at(10, 0), at(11, 0), inRoomA)
	e3.State = model.StateConfirm
	require.NoError(t, conflict.CheckEvent(ctx, db, e3, model.SyncOptions{}))
}

func TestDraftAndCancelledAreInvisible(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	inRoomA := func(ev *model.Event) { ev.LocationIDs = []string{"room-a"} }

	insertEvent(t, db, model.StateDraft, at(9, 0), at(10, 0), inRoomA)
	insertEvent(t, db, model.StateCancel, at(9, 0), at(10, 0), inRoomA)

	conflicts, err := conflict.Find(ctx, db, conflict.Query{
		Interval:    model.Interval{Start: at(9, 0), End: at(10, 0)},
		Dimension:   model.DimensionLocation,
		ResourceKey: "room-a",
	})
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestSelfIsExcluded(t *testing.T) {
	db := setup(t)
	ev := insertEvent(t, db, model.StateConfirm, at(9, 0), at(10, 0), func(ev *model.Event) {
		ev.LocationIDs = []string{"room-a"}
		ev.VirtualAccountID = "VirtualAccountX"
	})
	require.NoError(t, conflict.CheckEvent(context.Background(), db, ev, model.SyncOptions{}))
}

func TestVirtualAccountConflict(t *testing.T) {
	db := setup(t)
	withAccount := func(ev *model.Event) { ev.VirtualAccountID = "VirtualAccountX" }

	insertEvent(t, db, model.StateConfirm, at(9, 0), at(10, 0), withAccount)
	second := insertEvent(t, db, model.StateDraft, at(9, 45), at(10, 15), func(ev *model.Event) {
		ev.VirtualAccountID = "VirtualAccountX"
		ev.HostID = "other-host"
	})
	second.State = model.StateConfirm

	err := conflict.CheckEvent(context.Background(), db, second, model.SyncOptions{})
	var conflictErr *model.ConflictError
	require.True(t, errors.As(err, &conflictErr), "got %v", err)
	require.Equal(t, model.DimensionVirtualAccount, conflictErr.Dimension)
	require.Equal(t, "VirtualAccountX", conflictErr.ResourceKey)
}

func TestAttendeeConflict(t *testing.T) {
	db := setup(t)
	insertEvent(t, db, model.StateConfirm, at(9, 0), at(10, 0), func(ev *model.Event) {
		ev.AttendeeIDs = []string{"u"}
	})
	e4 := insertEvent(t, db, model.StateDraft, at(9, 0), at(9, 30), func(ev *model.Event) {
		ev.HostID = "other-host"
		ev.AttendeeIDs = []string{"u"}
	})
	e4.State = model.StateConfirm

	err := conflict.CheckEvent(context.Background(), db, e4, model.SyncOptions{})
	var conflictErr *model.ConflictError
	require.True(t, errors.As(err, &conflictErr), "got %v", err)
	require.Equal(t, model.DimensionAttendee, conflictErr.Dimension)
	require.Equal(t, "u", conflictErr.ResourceKey)
}

func TestSuppressedCheckPasses(t *testing.T) {
	db := setup(t)
	insertEvent(t, db, model.StateConfirm, at(9, 0), at(10, 0), func(ev *model.Event) {
		ev.LocationIDs = []string{"room-a"}
	})
	other := insertEvent(t, db, model.StateDraft, at(9, 0), at(10, 0), func(ev *model.Event) {
		ev.HostID = "other-host"
		ev.LocationIDs = []string{"room-a"}
	})
	other.State = model.StateConfirm

	require.NoError(t, conflict.CheckEvent(context.Background(), db, other, model.SyncOptions{SuppressConflictCheck: true}))
	require.Error(t, conflict.CheckEvent(context.Background(), db, other, model.SyncOptions{}))
}

func TestLegacyBookingHoldsRoom(t *testing.T) {
	ctx := context.Background()
	db := setup(t)

	legacy := &model.RoomBooking{
		ID:         uuid.NewString(),
		LocationID: "room-b",
		Subject:    "legacy standup",
		StartDate:  at(9, 0).Unix(),
		EndDate:    at(9, 15).Unix(),
		State:      model.StateConfirm,
	}
	require.NoError(t, legacy.Upsert(ctx, db))

	ev := insertEvent(t, db, model.StateDraft, at(9, 10), at(9, 40), func(ev *model.Event) {
		ev.LocationIDs = []string{"room-b"}
	})
	ev.State = model.StateConfirm

	err := conflict.CheckEvent(ctx, db, ev, model.SyncOptions{})
	var conflictErr *model.ConflictError
	require.True(t, errors.As(err, &conflictErr), "got %v", err)
	require.Equal(t, legacy.ID, conflictErr.ConflictingBooking)
	require.Equal(t, "legacy standup", conflictErr.ConflictingSubject)

	// the orphan itself can be excluded while it is being reconciled
	require.NoError(t, conflict.CheckEvent(ctx, db, ev, model.SyncOptions{}, legacy.ID))
}

func TestDerivedBookingIsReportedOnce(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	ev := insertEvent(t, db, model.StateConfirm, at(9, 0), at(10, 0), func(ev *model.Event) {
		ev.LocationIDs = []string{"room-a"}
	})
	derived := &model.RoomBooking{
		ID:         uuid.NewString(),
		EventID:    ev.ID,
		LocationID: "room-a",
		Subject:    ev.Subject,
		StartDate:  ev.StartDate,
		EndDate:    ev.EndDate,
		State:      model.StateConfirm,
	}
	require.NoError(t, derived.Upsert(ctx, db))

	conflicts, err := conflict.Find(ctx, db, conflict.Query{
		Interval:    model.Interval{Start: at(9, 30), End: at(9, 45)},
		Dimension:   model.DimensionLocation,
		ResourceKey: "room-a",
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, ev.ID, conflicts[0].EventID)

	// checking the derived booking against its own event finds nothing
	require.NoError(t, conflict.CheckBooking(ctx, db, derived, model.SyncOptions{}))
}

func TestOverlaps(t *testing.T) {
	require.True(t, conflict.Overlaps(0, 10, 5, 15))
	require.False(t, conflict.Overlaps(0, 10, 10, 20))
	require.False(t, conflict.Overlaps(10, 20, 0, 10))
}
