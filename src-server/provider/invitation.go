package provider

import (
	"fmt"
	"strings"

	"meetroom/src-server/model"
	"meetroom/src-server/tz"
)

// zones Zoom rejects, mapped to a supported zone with the same offset
var zoomTimezones = map[string]string{
	"Asia/Makassar":      "Asia/Singapore",
	"Asia/Ujung_Pandang": "Asia/Singapore",
	"Asia/Jakarta":       "Asia/Bangkok",
	"Asia/Pontianak":     "Asia/Bangkok",
	"Asia/Jayapura":      "Asia/Tokyo",
}

func ZoomTimezone(name string) string {
	if mapped, ok := zoomTimezones[name]; ok {
		return mapped
	}
	_, resolved := tz.Resolve(name)
	return resolved
}

// InvitationText is the plain-text invitation stored on the event. The
// meeting password is never included.
func InvitationText(ev *model.Event, account *model.VirtualAccount, result LinkResult, hostTimezone string) string {
	interval := ev.Interval()
	start := tz.ToLocal(interval.Start, hostTimezone)
	end := tz.ToLocal(interval.End, hostTimezone)

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("You are invited to %q\n", ev.Subject))
	sb.WriteString(fmt.Sprintf("When: %s - %s %s (UTC%s)\n",
		start.Time.Format("Mon Jan 02, 2006 15:04"), end.Time.Format("15:04"), start.TZName, start.Offset))
	if account != nil {
		sb.WriteString(fmt.Sprintf("Where: %s (%s)\n", account.Name, Kind(account.Provider).Label()))
	}
	sb.WriteString("Join: " + result.JoinURL + "\n")
	if result.MeetingID != "" {
		sb.WriteString("Meeting ID: " + result.MeetingID + "\n")
	}
	return sb.String()
}
