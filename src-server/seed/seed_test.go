package seed

import (
	"context"
	"testing"

	"meetroom/src-server/dbtest"
	"meetroom/src-server/model"

	"github.com/stretchr/testify/require"
)

const sample = `
users:
  - id: host
    name: Host
    email: host@example.com
    timezone: Asia/Jakarta
    discord_id: "1234"
  - id: boss
    name: Boss
    manager: true
locations:
  - id: room-a
    name: Room A
    timezone: Asia/Jakarta
  - id: room-old
    name: Old Room
    active: false
virtual_accounts:
  - id: meet
    name: Team Meet
    provider: google_meet
    static_link: meet.google.com/abc-defg-hij
`

func TestParseAndApply(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, f.Users, 2)
	require.NoError(t, f.Apply(ctx, db))
	// idempotent
	require.NoError(t, f.Apply(ctx, db))

	host, err := model.GetUser(ctx, db, "host")
	require.NoError(t, err)
	require.Equal(t, "Asia/Jakarta", host.Timezone)
	require.Equal(t, "1234", host.DiscordID)
	require.False(t, host.IsManager)

	boss, err := model.GetUser(ctx, db, "boss")
	require.NoError(t, err)
	require.True(t, boss.IsManager)

	roomA, err := model.GetLocation(ctx, db, "room-a")
	require.NoError(t, err)
	require.True(t, roomA.Active)
	old, err := model.GetLocation(ctx, db, "room-old")
	require.NoError(t, err)
	require.False(t, old.Active)

	meet, err := model.GetVirtualAccount(ctx, db, "meet")
	require.NoError(t, err)
	require.Equal(t, "google_meet", meet.Provider)
	require.True(t, meet.Active)
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"timezone": "users:\n  - id: u\n    name: U\n    timezone: Mars/Base\n",
		"provider": "virtual_accounts:\n  - id: v\n    name: V\n    provider: skype\n",
		"yaml":     "users: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	require.Error(t, err)
}
