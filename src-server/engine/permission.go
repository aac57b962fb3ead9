package engine

import (
	"context"
	"errors"
	"fmt"

	"meetroom/src-server/model"

	"github.com/uptrace/bun"
)

type scope int

const (
	// subject, description and adding attendees
	scopeContent scope = iota
	// state, times, locations, virtual account, attendee removal
	scopeSchedule
)

// authorize lets the host, the creator and managers do anything. Other
// attendees may only touch content. Everyone else is rejected.
func authorize(ctx context.Context, db bun.IDB, op string, ev *model.Event, actorID string, s scope) error {
	denied := func(reason string) error {
		return &model.PermissionError{Op: op, UserID: actorID, EventID: ev.ID, Reason: reason}
	}
	if actorID == "" {
		return denied("no acting user")
	}
	if actorID == ev.HostID || actorID == ev.CreatedBy {
		return nil
	}
	actor, err := model.GetUser(ctx, db, actorID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return denied("unknown user")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if actor.IsManager {
		return nil
	}
	if !ev.HasAttendee(actorID) {
		return denied("not an attendee")
	}
	if s == scopeSchedule {
		return denied("only the host, the creator or a manager may change the schedule")
	}
	return nil
}
