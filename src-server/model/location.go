package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Location is a physical meeting room.
type Location struct {
	bun.BaseModel `bun:"table:locations,alias:loc"`

	ID          string `bun:"id,pk,notnull,unique"`
	Name        string `bun:"name,notnull"`
	Timezone    string `bun:"timezone"`
	Address     string `bun:"address"`
	Description string `bun:"description"`
	Active      bool   `bun:"active"`
}

func (l *Location) Upsert(ctx context.Context, db bun.IDB) error {
	switch {
	case l.ID == "":
		return fmt.Errorf("(*Location).Upsert: location id is blank")
	case strings.TrimSpace(l.Name) == "":
		return fmt.Errorf("(*Location).Upsert: name is blank")
	}

	if _, err := db.
		NewInsert().
		Model(l).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("timezone = EXCLUDED.timezone").
		Set("address = EXCLUDED.address").
		Set("description = EXCLUDED.description").
		Set("active = EXCLUDED.active").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Location).Upsert: %w", err)
	}
	return nil
}

func GetLocation(ctx context.Context, db bun.IDB, id string) (*Location, error) {
	location := new(Location)
	if err := db.NewSelect().
		Model(location).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetLocation: %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("GetLocation: %w", err)
	}
	return location, nil
}

func GetLocations(ctx context.Context, db bun.IDB, ids []string) ([]*Location, error) {
	locations := []*Location{}
	if len(ids) == 0 {
		return locations, nil
	}
	if err := db.NewSelect().
		Model(&locations).
		Where("id IN (?)", bun.In(ids)).
		Order("name ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetLocations: %w", err)
	}
	if len(locations) != len(dedupe(ids)) {
		return nil, fmt.Errorf("GetLocations: some of %v: %w", ids, ErrNotFound)
	}
	return locations, nil
}
