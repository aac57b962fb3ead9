package route

import (
	"net/http"
	"strconv"
	"time"

	"meetroom/src-server/model"
	"meetroom/src-server/slots"
	"meetroom/src-server/tz"
	"meetroom/src-server/utils"
)

type SlotRespBody struct {
	StartUnixUTC int64  `json:"startUnixUTC"`
	EndUnixUTC   int64  `json:"endUnixUTC"`
	LocalStart   string `json:"localStart"`
	LocalEnd     string `json:"localEnd"`
	Timezone     string `json:"timezone"`
}

// FreeSlots serves the booking portal's slot list. Query parameters:
//   - from: date or phrase ("tomorrow"), default now
//   - days: horizon, default BOOKING_HORIZON_DAYS
func FreeSlots(muxer *http.ServeMux, as *utils.AppState, now func() time.Time) {
	muxer.HandleFunc("GET /hosts/{id}/free-slots", func(w http.ResponseWriter, r *http.Request) {
		hostID := r.PathValue("id")
		host, err := model.GetUser(r.Context(), as.BunDb, hostID)
		if err != nil {
			writeError(w, err)
			return
		}
		loc, tzName := tz.Resolve(host.Timezone)

		// #region - parse query
		current := now()
		from, err := utils.ParseNaturalTime(as.When, r.URL.Query().Get("from"), current.In(loc))
		if err != nil {
			writeError(w, model.NewValidationError("FreeSlots", "%v", err))
			return
		}
		days := as.Config.GetBookingHorizonDays()
		if raw := r.URL.Query().Get("days"); raw != "" {
			days, err = strconv.Atoi(raw)
			if err != nil || days < 1 || days > 60 {
				writeError(w, model.NewValidationError("FreeSlots", "days must be between 1 and 60"))
				return
			}
		}
		// #endregion

		free, err := slots.ListFreeSlots(r.Context(), as.BunDb, host.ID, slots.Window{
			From:          from,
			Days:          days,
			WorkStartHour: as.Config.GetBookingWorkStart(),
			WorkEndHour:   as.Config.GetBookingWorkEnd(),
		}, as.Config.GetBookingSlot(), current)
		if err != nil {
			writeError(w, err)
			return
		}

		respBody := make([]SlotRespBody, 0, len(free))
		for _, slot := range free {
			respBody = append(respBody, SlotRespBody{
				StartUnixUTC: slot.Start.Unix(),
				EndUnixUTC:   slot.End.Unix(),
				LocalStart:   tz.ToLocal(slot.Start, tzName).Wall,
				LocalEnd:     tz.ToLocal(slot.End, tzName).Wall,
				Timezone:     tzName,
			})
		}
		writeJSON(w, http.StatusOK, respBody)
	})
}
