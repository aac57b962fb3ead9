package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"meetroom/src-server/model"
	"meetroom/src-server/provider"

	"github.com/stretchr/testify/require"
)

type fakeZoom struct {
	deleted []string
	fail    error
}

func (f *fakeZoom) GenerateLink(_ context.Context, req provider.LinkRequest) (provider.LinkResult, error) {
	if f.fail != nil {
		return provider.LinkResult{}, f.fail
	}
	return provider.LinkResult{MeetingID: "z-" + req.EventID, JoinURL: "https://zoom.us/j/1", Password: "secret"}, nil
}

func (f *fakeZoom) DeleteMeeting(_ context.Context, _ *model.VirtualAccount, id string) error {
	f.deleted = append(f.deleted, id)
	return f.fail
}

func TestGoogleMeetStaticLink(t *testing.T) {
	registry := provider.NewRegistry()
	result, err := registry.GenerateLink(context.Background(), provider.LinkRequest{
		Account: &model.VirtualAccount{Name: "meet", Provider: "google_meet", StaticLink: "meet.google.com/abc-defg-hij"},
	})
	require.NoError(t, err)
	require.Equal(t, "https://meet.google.com/abc-defg-hij", result.JoinURL)
	require.Empty(t, result.MeetingID)
}

func TestUnconfiguredAndManualProvidersFail(t *testing.T) {
	registry := provider.NewRegistry()
	for _, p := range []string{"zoom", "teams", "manual", "webex"} {
		_, err := registry.GenerateLink(context.Background(), provider.LinkRequest{
			Account: &model.VirtualAccount{Name: p, Provider: p},
		})
		var extErr *model.ExternalResourceError
		require.True(t, errors.As(err, &extErr), "%s: got %v", p, err)
		require.Equal(t, p, extErr.Provider)
	}
}

func TestCanGenerate(t *testing.T) {
	registry := provider.NewRegistry()
	require.True(t, registry.CanGenerate(&model.VirtualAccount{Provider: "google_meet"}))
	require.False(t, registry.CanGenerate(&model.VirtualAccount{Provider: "zoom"}))
	require.False(t, registry.CanGenerate(&model.VirtualAccount{Provider: "teams"}))
	require.False(t, registry.CanGenerate(&model.VirtualAccount{Provider: "manual"}))
	require.False(t, registry.CanGenerate(nil))

	registry.Register(provider.KindZoom, &fakeZoom{})
	require.True(t, registry.CanGenerate(&model.VirtualAccount{Provider: "zoom"}))
}

func TestRegisteredProvider(t *testing.T) {
	registry := provider.NewRegistry()
	zoom := &fakeZoom{}
	registry.Register(provider.KindZoom, zoom)
	account := &model.VirtualAccount{Name: "zoom 1", Provider: "zoom"}

	result, err := registry.GenerateLink(context.Background(), provider.LinkRequest{EventID: "e1", Account: account})
	require.NoError(t, err)
	require.Equal(t, "z-e1", result.MeetingID)

	require.NoError(t, registry.DeleteMeeting(context.Background(), account, "z-e1"))
	require.NoError(t, registry.DeleteMeeting(context.Background(), account, ""))
	require.Equal(t, []string{"z-e1"}, zoom.deleted)

	zoom.fail = errors.New("api down")
	err = registry.DeleteMeeting(context.Background(), account, "z-e1")
	var extErr *model.ExternalResourceError
	require.True(t, errors.As(err, &extErr))
	require.ErrorContains(t, err, "api down")
}

func TestZoomTimezone(t *testing.T) {
	require.Equal(t, "Asia/Bangkok", provider.ZoomTimezone("Asia/Jakarta"))
	require.Equal(t, "Asia/Singapore", provider.ZoomTimezone("Asia/Makassar"))
	require.Equal(t, "Asia/Tokyo", provider.ZoomTimezone("Asia/Jayapura"))
	require.Equal(t, "Europe/Brussels", provider.ZoomTimezone("Europe/Brussels"))
	require.Equal(t, "UTC", provider.ZoomTimezone("nowhere"))
}

func TestKindLabel(t *testing.T) {
	require.Equal(t, "Google Meet", provider.KindGoogleMeet.Label())
	require.Equal(t, "Zoom", provider.KindZoom.Label())
}

func TestInvitationOmitsPassword(t *testing.T) {
	start := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	ev := &model.Event{Subject: "review"}
	ev.SetInterval(model.Interval{Start: start, End: start.Add(time.Hour)})

	text := provider.InvitationText(ev,
		&model.VirtualAccount{Name: "zoom 1", Provider: "zoom"},
		provider.LinkResult{MeetingID: "123", JoinURL: "https://zoom.us/j/123", Password: "hunter2"},
		"Asia/Jakarta")
	require.Contains(t, text, "https://zoom.us/j/123")
	require.Contains(t, text, "14:00 - 15:00 Asia/Jakarta (UTC+0700)")
	require.Contains(t, text, "zoom 1 (Zoom)")
	require.NotContains(t, text, "hunter2")
}
