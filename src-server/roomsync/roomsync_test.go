package roomsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"meetroom/src-server/dbtest"
	"meetroom/src-server/model"
	"meetroom/src-server/roomsync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var nine = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) *bun.DB {
	db := dbtest.New(t)
	fx := dbtest.Seed(t, db)
	fx.User("host", "Asia/Jakarta")
	fx.User("u", "")
	for _, id := range []string{"room-a", "room-b", "room-c"} {
		fx.Location(id, "")
	}
	return db
}

func confirmedEvent(t *testing.T, db bun.IDB, locations ...string) *model.Event {
	t.Helper()
	ev := &model.Event{
		ID:          uuid.NewString(),
		Subject:     "design review",
		State:       model.StateConfirm,
		HostID:      "host",
		AttendeeIDs: []string{"u"},
		LocationIDs: locations,
	}
	ev.SetInterval(model.Interval{Start: nine, End: nine.Add(time.Hour)})
	require.NoError(t, ev.Upsert(context.Background(), db))
	return ev
}

func bookingsByLocation(t *testing.T, db bun.IDB, eventID string) map[string][]*model.RoomBooking {
	t.Helper()
	bookings, err := model.ListDerivedBookings(context.Background(), db, eventID)
	require.NoError(t, err)
	out := map[string][]*model.RoomBooking{}
	for _, rb := range bookings {
		out[rb.LocationID] = append(out[rb.LocationID], rb)
	}
	return out
}

func TestForwardLocationEdit(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	ev := confirmedEvent(t, db, "room-a", "room-c")

	result, err := roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, roomsync.Result{Created: 2}, result)

	before := bookingsByLocation(t, db, ev.ID)
	roomC := before["room-c"][0]
	require.ElementsMatch(t, []string{"host", "u"}, roomC.AttendeeIDs)

	// swap room A for room B
	ev.LocationIDs = []string{"room-b", "room-c"}
	require.NoError(t, ev.Upsert(ctx, db))
	result, err = roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, roomsync.Result{Created: 1, Cancelled: 1}, result)

	after := bookingsByLocation(t, db, ev.ID)
	require.Len(t, after["room-a"], 1)
	require.Equal(t, model.StateCancel, after["room-a"][0].State)
	require.Len(t, after["room-b"], 1)
	require.Equal(t, model.StateConfirm, after["room-b"][0].State)
	require.Len(t, after["room-c"], 1)
	require.Equal(t, roomC.ID, after["room-c"][0].ID)
	require.Equal(t, model.StateConfirm, after["room-c"][0].State)
}

func TestForwardUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	ev := confirmedEvent(t, db, "room-a")
	_, err := roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)

	ev.SetInterval(model.Interval{Start: nine.Add(2 * time.Hour), End: nine.Add(3 * time.Hour)})
	ev.Subject = "design review (moved)"
	require.NoError(t, ev.Upsert(ctx, db))
	result, err := roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, roomsync.Result{Updated: 1}, result)

	rb := bookingsByLocation(t, db, ev.ID)["room-a"][0]
	require.Equal(t, ev.StartDate, rb.StartDate)
	require.Equal(t, "design review (moved)", rb.Subject)

	// nothing changed, nothing written
	result, err = roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)
	require.False(t, result.Changed())
}

func TestForwardSuppressedAndNotConfirmed(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	ev := confirmedEvent(t, db, "room-a", "room-b")

	result, err := roomsync.Forward(ctx, db, ev, model.SyncOptions{SuppressForwardSync: true})
	require.NoError(t, err)
	require.False(t, result.Changed())
	require.Empty(t, bookingsByLocation(t, db, ev.ID))

	_, err = roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)

	ev.State = model.StateDraft
	result, err = roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Cancelled)

	// confirming again revives the cancelled bookings instead of piling up new ones
	ev.State = model.StateConfirm
	result, err = roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, roomsync.Result{Updated: 2}, result)
	for _, bookings := range bookingsByLocation(t, db, ev.ID) {
		require.Len(t, bookings, 1)
		require.Equal(t, model.StateConfirm, bookings[0].State)
	}
}

func TestForwardCancelsDuplicates(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	ev := confirmedEvent(t, db, "room-a")
	for range 2 {
		rb := &model.RoomBooking{
			ID:         uuid.NewString(),
			EventID:    ev.ID,
			LocationID: "room-a",
			Subject:    ev.Subject,
			StartDate:  ev.StartDate,
			EndDate:    ev.EndDate,
			State:      model.StateConfirm,
		}
		require.NoError(t, rb.Upsert(ctx, db))
	}

	_, err := roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)

	live := 0
	for _, rb := range bookingsByLocation(t, db, ev.ID)["room-a"] {
		if rb.State == model.StateConfirm {
			live++
		}
	}
	require.Equal(t, 1, live)
}

func TestReverse(t *testing.T) {
	ctx := context.Background()
	db := setup(t)
	ev := confirmedEvent(t, db, "room-a")
	_, err := roomsync.Forward(ctx, db, ev, model.SyncOptions{})
	require.NoError(t, err)

	rb := bookingsByLocation(t, db, ev.ID)["room-a"][0]
	rb.Subject = "renamed in the room calendar"
	rb.SetInterval(model.Interval{Start: nine.Add(30 * time.Minute), End: nine.Add(90 * time.Minute)})
	rb.State = model.StateCancel
	rb.AttendeeIDs = []string{"host"}

	parent, err := roomsync.Reverse(ctx, db, rb)
	require.NoError(t, err)
	require.Equal(t, "renamed in the room calendar", parent.Subject)
	require.Equal(t, rb.StartDate, parent.StartDate)
	require.Equal(t, []string{"host"}, parent.AttendeeIDs)
	require.Equal(t, model.StateConfirm, parent.State)

	rb.EventID = uuid.NewString()
	_, err = roomsync.Reverse(ctx, db, rb)
	var syncErr *model.SyncInconsistencyError
	require.True(t, errors.As(err, &syncErr))
}
