package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meetroom/src-server/dbtest"
	"meetroom/src-server/engine"
	"meetroom/src-server/metric"
	"meetroom/src-server/model"
	"meetroom/src-server/provider"
	"meetroom/src-server/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func jakarta(t *testing.T, day, hour int) time.Time {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	return time.Date(2026, 3, day, hour, 0, 0, 0, loc)
}

func newMux(t *testing.T) *http.ServeMux {
	t.Setenv("BOOKING_WORK_START", "")
	t.Setenv("BOOKING_WORK_END", "")
	t.Setenv("BOOKING_SLOT_MINUTES", "")
	t.Setenv("BOOKING_HORIZON_DAYS", "")

	db := dbtest.New(t)
	dbtest.Seed(t, db).User("host", "Asia/Jakarta")
	busy := &model.Event{ID: uuid.NewString(), Subject: "Standup", State: model.StateConfirm, HostID: "host"}
	busy.SetInterval(model.Interval{Start: jakarta(t, 10, 10), End: jakarta(t, 10, 11)})
	require.NoError(t, busy.Upsert(context.Background(), db))

	as := &utils.AppState{Config: utils.NewConfig(), BunDb: db, When: utils.NewWhen()}
	now := func() time.Time { return jakarta(t, 10, 0) }
	reg := prometheus.NewRegistry()
	svc := engine.New(db, provider.NewRegistry(), engine.WithClock(now), engine.WithRecorder(metric.New(reg)))

	muxer := http.NewServeMux()
	Metrics(muxer, reg)
	FreeSlots(muxer, as, now)
	Booking(muxer, svc)
	return muxer
}

func TestFreeSlots(t *testing.T) {
	muxer := newMux(t)

	rec := httptest.NewRecorder()
	muxer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hosts/host/free-slots?from=2026-03-10&days=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body []SlotRespBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 7)
	require.Equal(t, "2026-03-10 09:00:00", body[0].LocalStart)
	require.Equal(t, "2026-03-10 11:00:00", body[1].LocalStart)
	require.Equal(t, "Asia/Jakarta", body[0].Timezone)
	require.Equal(t, jakarta(t, 10, 9).Unix(), body[0].StartUnixUTC)
}

func TestFreeSlotsErrors(t *testing.T) {
	muxer := newMux(t)

	rec := httptest.NewRecorder()
	muxer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hosts/ghost/free-slots", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	muxer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hosts/host/free-slots?days=0", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	muxer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hosts/host/free-slots?from=zzzz", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func postBooking(t *testing.T, muxer *http.ServeMux, start, end time.Time) *httptest.ResponseRecorder {
	payload := fmt.Sprintf(`{"startUnixUTC":%d,"endUnixUTC":%d,"guestName":"Ann","guestEmail":"ann@example.com"}`, start.Unix(), end.Unix())
	rec := httptest.NewRecorder()
	muxer.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hosts/host/bookings", bytes.NewBufferString(payload)))
	return rec
}

func TestBooking(t *testing.T) {
	muxer := newMux(t)

	rec := postBooking(t, muxer, jakarta(t, 10, 10), jakarta(t, 10, 11))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = postBooking(t, muxer, jakarta(t, 10, 12), jakarta(t, 10, 13))
	require.Equal(t, http.StatusCreated, rec.Code)
	var body BookingRespBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "draft", body.State)
	require.Equal(t, "Meeting with Ann", body.Subject)

	rec = httptest.NewRecorder()
	muxer.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hosts/host/bookings", bytes.NewBufferString("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	muxer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `meetroom_conflicts_total{dimension="attendee"} 1`)
}
