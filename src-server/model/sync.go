package model

import "time"

type State string

const (
	StateDraft   State = "draft"
	StateConfirm State = "confirm"
	StateCancel  State = "cancel"
)

func (s State) Valid() bool {
	switch s {
	case StateDraft, StateConfirm, StateCancel:
		return true
	}
	return false
}

// Dimension is the kind of resource a conflict was found on.
type Dimension string

const (
	DimensionLocation       Dimension = "location"
	DimensionVirtualAccount Dimension = "virtual_account"
	DimensionAttendee       Dimension = "attendee"
)

// SyncDirection records which way data is flowing in the current unit of work.
type SyncDirection int

const (
	SyncNone    SyncDirection = iota // a direct user edit
	SyncForward                      // Event -> RoomBooking
	SyncReverse                      // RoomBooking -> Event
	SyncLegacy                       // orphan reconciliation
)

func (d SyncDirection) String() string {
	switch d {
	case SyncForward:
		return "forward"
	case SyncReverse:
		return "reverse"
	case SyncLegacy:
		return "legacy"
	}
	return "none"
}

// SyncOptions is passed explicitly through every write so each call site
// states which checks and follow-up syncs it wants.
type SyncOptions struct {
	Direction             SyncDirection
	SuppressConflictCheck bool
	SuppressForwardSync   bool
	SuppressReverseSync   bool
	SkipActivities        bool
}

// Interval is a half-open [Start, End) span of time.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(startUnix, endUnix int64) Interval {
	return Interval{
		Start: time.Unix(startUnix, 0).UTC(),
		End:   time.Unix(endUnix, 0).UTC(),
	}
}

func (i Interval) Valid() bool {
	return !i.Start.IsZero() && i.End.After(i.Start)
}

// Overlaps reports whether i and o share any instant. Touching endpoints
// do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}
