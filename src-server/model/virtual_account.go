package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// VirtualAccount is a shared account on a virtual-meeting provider. The
// credential fields are only read by provider implementations.
type VirtualAccount struct {
	bun.BaseModel `bun:"table:virtual_accounts,alias:va"`

	ID           string `bun:"id,pk,notnull,unique"`
	Name         string `bun:"name,notnull"`
	Provider     string `bun:"provider,notnull"`
	HostEmail    string `bun:"host_email"`
	StaticLink   string `bun:"static_link"`
	AccountID    string `bun:"account_id"`
	ClientID     string `bun:"client_id"`
	ClientSecret string `bun:"client_secret"`
	Active       bool   `bun:"active"`
}

func (v *VirtualAccount) Upsert(ctx context.Context, db bun.IDB) error {
	switch {
	case v.ID == "":
		return fmt.Errorf("(*VirtualAccount).Upsert: id is blank")
	case strings.TrimSpace(v.Name) == "":
		return fmt.Errorf("(*VirtualAccount).Upsert: name is blank")
	case v.Provider == "":
		return fmt.Errorf("(*VirtualAccount).Upsert: provider is blank")
	}

	if _, err := db.
		NewInsert().
		Model(v).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("provider = EXCLUDED.provider").
		Set("host_email = EXCLUDED.host_email").
		Set("static_link = EXCLUDED.static_link").
		Set("account_id = EXCLUDED.account_id").
		Set("client_id = EXCLUDED.client_id").
		Set("client_secret = EXCLUDED.client_secret").
		Set("active = EXCLUDED.active").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*VirtualAccount).Upsert: %w", err)
	}
	return nil
}

func GetVirtualAccount(ctx context.Context, db bun.IDB, id string) (*VirtualAccount, error) {
	account := new(VirtualAccount)
	if err := db.NewSelect().
		Model(account).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetVirtualAccount: %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("GetVirtualAccount: %w", err)
	}
	return account, nil
}
