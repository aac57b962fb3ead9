package model

import (
	"github.com/uptrace/bun"
)

// Activity is a reminder entry for one attendee of a confirmed event,
// rendered in that attendee's own timezone.
type Activity struct {
	bun.BaseModel `bun:"table:activities,alias:act"`

	ID        string `bun:"id,pk,notnull"`
	EventID   string `bun:"event_id,notnull"`
	UserID    string `bun:"user_id,notnull"`
	Deadline  string `bun:"deadline,notnull"`   // 2006-01-02 in the attendee's timezone
	StartDate int64  `bun:"start_date,notnull"` // unix seconds, UTC

	Subject         string `bun:"subject"`
	DateLabel       string `bun:"date_label"`
	LocalStart      string `bun:"local_start"`
	LocalEnd        string `bun:"local_end"`
	TZName          string `bun:"tz_name"`
	UTCRange        string `bun:"utc_range"`
	Duration        string `bun:"duration"`
	LocationSummary string `bun:"location_summary"`
	Note            string `bun:"note"`

	Dispatched bool  `bun:"dispatched"`
	CreatedAt  int64 `bun:"created_at,notnull"`
}
