package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string `bun:"id,pk,notnull,unique"`
	Name      string `bun:"name,notnull"`
	Email     string `bun:"email"`
	Timezone  string `bun:"timezone"` // blank means UTC
	DiscordID string `bun:"discord_id"`
	IsManager bool   `bun:"is_manager"`
}

func (u *User) Upsert(ctx context.Context, db bun.IDB) error {
	switch {
	case u.ID == "":
		return fmt.Errorf("(*User).Upsert: user id is blank")
	case strings.TrimSpace(u.Name) == "":
		return fmt.Errorf("(*User).Upsert: name is blank")
	}

	if _, err := db.
		NewInsert().
		Model(u).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("timezone = EXCLUDED.timezone").
		Set("discord_id = EXCLUDED.discord_id").
		Set("is_manager = EXCLUDED.is_manager").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*User).Upsert: %w", err)
	}
	return nil
}

func GetUser(ctx context.Context, db bun.IDB, id string) (*User, error) {
	user := new(User)
	if err := db.NewSelect().
		Model(user).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetUser: %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	return user, nil
}

// GetUsers returns the users in ids, ordered by name.
func GetUsers(ctx context.Context, db bun.IDB, ids []string) ([]*User, error) {
	users := []*User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := db.NewSelect().
		Model(&users).
		Where("id IN (?)", bun.In(ids)).
		Order("name ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetUsers: %w", err)
	}
	if len(users) != len(dedupe(ids)) {
		return nil, fmt.Errorf("GetUsers: some of %v: %w", ids, ErrNotFound)
	}
	return users, nil
}

// dedupe keeps the first occurrence of every non-blank id.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
