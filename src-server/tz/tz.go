package tz

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata"
)

// Layout of the wall-clock strings produced by ToLocal and accepted by ToUTC.
const WallLayout = "2006-01-02 15:04:05"

type Local struct {
	Time   time.Time // the instant, in the resolved location
	TZName string    // resolved zone name, "UTC" when the requested one was unusable
	Offset string    // ±HHMM at that instant
	Wall   string    // WallLayout formatted local time
}

// Resolve loads a named zone. Blank or unknown names degrade to UTC.
func Resolve(name string) (*time.Location, string) {
	name = strings.TrimSpace(name)
	switch name {
	case "", "UTC", "Etc/UTC":
		return time.UTC, "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Debug("unknown timezone, falling back to UTC", "timezone", name, "error", err)
		return time.UTC, "UTC"
	}
	return loc, name
}

// Known reports whether name is a loadable IANA zone. A blank name is not,
// even though time.LoadLocation reads it as UTC.
func Known(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// Chain returns the first name that resolves to a real zone, else "UTC".
// Used for the location -> host -> UTC display fallback.
func Chain(names ...string) string {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, resolved := Resolve(name); resolved != "UTC" || isUTCName(name) {
			return resolved
		}
	}
	return "UTC"
}

func isUTCName(name string) bool {
	switch strings.TrimSpace(name) {
	case "UTC", "Etc/UTC":
		return true
	}
	return false
}

// ToLocal converts the instant itself into tzName, so the offset is the one
// in effect at that instant and not the one in effect today.
func ToLocal(instant time.Time, tzName string) Local {
	loc, resolved := Resolve(tzName)
	local := instant.In(loc)
	return Local{
		Time:   local,
		TZName: resolved,
		Offset: FormatOffset(local),
		Wall:   local.Format(WallLayout),
	}
}

// ToUTC interprets a WallLayout string as civil time in tzName.
func ToUTC(wall string, tzName string) (time.Time, error) {
	loc, _ := Resolve(tzName)
	t, err := time.ParseInLocation(WallLayout, strings.TrimSpace(wall), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("ToUTC: %w", err)
	}
	return t.UTC(), nil
}

func CivilToUTC(year int, month time.Month, day, hour, min, sec int, tzName string) time.Time {
	loc, _ := Resolve(tzName)
	return time.Date(year, month, day, hour, min, sec, 0, loc).UTC()
}

// FormatOffset renders the UTC offset of t as ±HHMM, the form used by
// TZOFFSETFROM/TZOFFSETTO.
func FormatOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%c%02d%02d", sign, offset/3600, (offset%3600)/60)
}

// Unix helpers for the unix-seconds columns.
func FromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
