package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"meetroom/src-server/model"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Kind string

const (
	KindZoom       Kind = "zoom"
	KindTeams      Kind = "teams"
	KindGoogleMeet Kind = "google_meet"
	KindManual     Kind = "manual"
)

func (k Kind) Valid() bool {
	switch k {
	case KindZoom, KindTeams, KindGoogleMeet, KindManual:
		return true
	}
	return false
}

// Label is the human readable provider name, e.g. "Google Meet".
func (k Kind) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(k), "_", " "))
}

var ErrNotImplemented = errors.New("provider not implemented")

type LinkRequest struct {
	EventID     string
	Subject     string
	Description string
	Interval    model.Interval
	Timezone    string // host timezone
	Account     *model.VirtualAccount
}

type LinkResult struct {
	MeetingID string // blank when the provider has nothing to delete later
	JoinURL   string
	StartURL  string
	Password  string
}

// Generator is implemented once per provider kind.
type Generator interface {
	GenerateLink(ctx context.Context, req LinkRequest) (LinkResult, error)
	DeleteMeeting(ctx context.Context, account *model.VirtualAccount, meetingID string) error
}

// Registry dispatches on the account's provider tag.
type Registry struct {
	mu         sync.RWMutex
	generators map[Kind]Generator
}

// NewRegistry registers the built-in Google Meet and manual providers. Zoom
// and Teams clients are registered by the embedding application.
func NewRegistry() *Registry {
	r := &Registry{generators: make(map[Kind]Generator)}
	r.Register(KindGoogleMeet, GoogleMeet{})
	r.Register(KindManual, Manual{})
	return r
}

func (r *Registry) Register(kind Kind, g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[kind] = g
}

func (r *Registry) lookup(account *model.VirtualAccount, op string) (Generator, error) {
	if account == nil {
		return nil, &model.ExternalResourceError{Op: op, Err: errors.New("no virtual account")}
	}
	kind := Kind(account.Provider)
	if !kind.Valid() {
		return nil, &model.ExternalResourceError{Provider: account.Provider, Op: op, Err: fmt.Errorf("unknown provider %q", account.Provider)}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[kind]
	if !ok {
		return nil, &model.ExternalResourceError{Provider: account.Provider, Op: op, Err: fmt.Errorf("%s is not configured", kind.Label())}
	}
	return g, nil
}

// CanGenerate reports whether a link can be created for account without
// anyone's help: its provider is registered and is not the manual kind.
func (r *Registry) CanGenerate(account *model.VirtualAccount) bool {
	if account == nil || Kind(account.Provider) == KindManual {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.generators[Kind(account.Provider)]
	return ok
}

// GenerateLink always reports failures as *model.ExternalResourceError.
func (r *Registry) GenerateLink(ctx context.Context, req LinkRequest) (LinkResult, error) {
	g, err := r.lookup(req.Account, "generate link")
	if err != nil {
		return LinkResult{}, err
	}
	result, err := g.GenerateLink(ctx, req)
	if err != nil {
		var extErr *model.ExternalResourceError
		if errors.As(err, &extErr) {
			return LinkResult{}, err
		}
		return LinkResult{}, &model.ExternalResourceError{Provider: req.Account.Provider, Op: "generate link", Err: err}
	}
	if result.JoinURL == "" {
		return LinkResult{}, &model.ExternalResourceError{Provider: req.Account.Provider, Op: "generate link", Err: errors.New("provider returned no join url")}
	}
	return result, nil
}

func (r *Registry) DeleteMeeting(ctx context.Context, account *model.VirtualAccount, meetingID string) error {
	if meetingID == "" {
		return nil
	}
	g, err := r.lookup(account, "delete meeting")
	if err != nil {
		return err
	}
	if err := g.DeleteMeeting(ctx, account, meetingID); err != nil {
		var extErr *model.ExternalResourceError
		if errors.As(err, &extErr) {
			return err
		}
		return &model.ExternalResourceError{Provider: account.Provider, Op: "delete meeting", Err: err}
	}
	return nil
}

// GoogleMeet serves the account's static meeting link.
type GoogleMeet struct{}

func (GoogleMeet) GenerateLink(_ context.Context, req LinkRequest) (LinkResult, error) {
	link := strings.TrimSpace(req.Account.StaticLink)
	if link == "" {
		return LinkResult{}, fmt.Errorf("account %s has no static link", req.Account.Name)
	}
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		link = "https://" + link
	}
	return LinkResult{JoinURL: link, StartURL: link}, nil
}

func (GoogleMeet) DeleteMeeting(context.Context, *model.VirtualAccount, string) error {
	return nil
}

type Manual struct{}

func (Manual) GenerateLink(context.Context, LinkRequest) (LinkResult, error) {
	return LinkResult{}, fmt.Errorf("manual meeting links: %w", ErrNotImplemented)
}

func (Manual) DeleteMeeting(context.Context, *model.VirtualAccount, string) error {
	return nil
}
