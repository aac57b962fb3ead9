package route

import (
	"encoding/json"
	"net/http"
	"time"

	"meetroom/src-server/engine"
	"meetroom/src-server/model"
)

type BookingReqBody struct {
	Subject      string `json:"subject"`
	StartUnixUTC int64  `json:"startUnixUTC"`
	EndUnixUTC   int64  `json:"endUnixUTC"`
	GuestName    string `json:"guestName"`
	GuestEmail   string `json:"guestEmail"`
}

type BookingRespBody struct {
	EventID string `json:"eventId"`
	State   string `json:"state"`
	Subject string `json:"subject"`
}

// Booking accepts a guest's slot request. The result is a draft the host
// still has to confirm.
func Booking(muxer *http.ServeMux, svc *engine.Service) {
	muxer.HandleFunc("POST /hosts/{id}/bookings", func(w http.ResponseWriter, r *http.Request) {
		var reqBody BookingReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			writeError(w, model.NewValidationError("Booking", "invalid request body"))
			return
		}
		if reqBody.StartUnixUTC == 0 || reqBody.EndUnixUTC == 0 {
			writeError(w, model.NewValidationError("Booking", "please provide a start date and end date"))
			return
		}

		ev, err := svc.RequestGuestBooking(r.Context(), engine.GuestRequest{
			HostID:  r.PathValue("id"),
			Subject: reqBody.Subject,
			Interval: model.Interval{
				Start: time.Unix(reqBody.StartUnixUTC, 0).UTC(),
				End:   time.Unix(reqBody.EndUnixUTC, 0).UTC(),
			},
			GuestName:  reqBody.GuestName,
			GuestEmail: reqBody.GuestEmail,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, BookingRespBody{
			EventID: ev.ID,
			State:   string(ev.State),
			Subject: ev.Subject,
		})
	})
}
