package seed

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"meetroom/src-server/model"
	"meetroom/src-server/provider"
	"meetroom/src-server/tz"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// File is the YAML document holding the reference data the engine does not
// manage itself.
type File struct {
	Users           []User           `yaml:"users"`
	Locations       []Location       `yaml:"locations"`
	VirtualAccounts []VirtualAccount `yaml:"virtual_accounts"`
}

type User struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	Timezone  string `yaml:"timezone"`
	DiscordID string `yaml:"discord_id"`
	Manager   bool   `yaml:"manager"`
}

type Location struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Timezone    string `yaml:"timezone"`
	Address     string `yaml:"address"`
	Description string `yaml:"description"`
	// nil means active
	Active *bool `yaml:"active,omitempty"`
}

type VirtualAccount struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Provider     string `yaml:"provider"`
	HostEmail    string `yaml:"host_email"`
	StaticLink   string `yaml:"static_link"`
	AccountID    string `yaml:"account_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Active       *bool  `yaml:"active,omitempty"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed.Load: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed.Parse: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("seed.Parse: %w", err)
	}
	return &f, nil
}

func (f *File) validate() error {
	for _, u := range f.Users {
		if u.Timezone != "" && !tz.Known(u.Timezone) {
			return fmt.Errorf("user %s: unknown timezone %q", u.ID, u.Timezone)
		}
	}
	for _, l := range f.Locations {
		if l.Timezone != "" && !tz.Known(l.Timezone) {
			return fmt.Errorf("location %s: unknown timezone %q", l.ID, l.Timezone)
		}
	}
	for _, va := range f.VirtualAccounts {
		if !provider.Kind(va.Provider).Valid() {
			return fmt.Errorf("virtual account %s: unknown provider %q", va.ID, va.Provider)
		}
	}
	return nil
}

// Apply upserts everything in one transaction.
func (f *File) Apply(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, u := range f.Users {
			user := &model.User{
				ID:        u.ID,
				Name:      u.Name,
				Email:     u.Email,
				Timezone:  u.Timezone,
				DiscordID: u.DiscordID,
				IsManager: u.Manager,
			}
			if err := user.Upsert(ctx, tx); err != nil {
				return fmt.Errorf("(*File).Apply: %w", err)
			}
		}
		for _, l := range f.Locations {
			location := &model.Location{
				ID:          l.ID,
				Name:        l.Name,
				Timezone:    l.Timezone,
				Address:     l.Address,
				Description: l.Description,
				Active:      active(l.Active),
			}
			if err := location.Upsert(ctx, tx); err != nil {
				return fmt.Errorf("(*File).Apply: %w", err)
			}
		}
		for _, va := range f.VirtualAccounts {
			account := &model.VirtualAccount{
				ID:           va.ID,
				Name:         va.Name,
				Provider:     va.Provider,
				HostEmail:    va.HostEmail,
				StaticLink:   va.StaticLink,
				AccountID:    va.AccountID,
				ClientID:     va.ClientID,
				ClientSecret: va.ClientSecret,
				Active:       active(va.Active),
			}
			if err := account.Upsert(ctx, tx); err != nil {
				return fmt.Errorf("(*File).Apply: %w", err)
			}
		}
		return nil
	})
}

func active(b *bool) bool {
	return b == nil || *b
}
