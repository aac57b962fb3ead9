package notify

import (
	"context"
	"fmt"
	"testing"

	"meetroom/src-server/model"

	"github.com/stretchr/testify/require"
)

func reminder(userID, discordID string) Reminder {
	return Reminder{
		Activity: model.Activity{
			EventID:         "ev-1",
			Subject:         "Planning",
			DateLabel:       "Mar 10, 2026",
			LocalStart:      "14:00",
			LocalEnd:        "15:00",
			TZName:          "Asia/Jakarta",
			UTCRange:        "07:00-08:00 UTC",
			StartDate:       1773126000,
			LocationSummary: "Room A",
		},
		User: &model.User{ID: userID, Name: userID, DiscordID: discordID},
	}
}

func TestEmbed(t *testing.T) {
	embed := Embed(reminder("u1", ""))
	require.Equal(t, "Planning", embed.Title)
	require.Equal(t, "ev-1", embed.Footer.Text)
	require.Equal(t, "14:00 - 15:00 (Asia/Jakarta)", embed.Fields[1].Value)
	require.Equal(t, "<t:1773126000:R>", embed.Fields[3].Value)
	require.Equal(t, "Location", embed.Fields[len(embed.Fields)-1].Name)
}

func TestMessageMentions(t *testing.T) {
	msg := Message([]Reminder{reminder("u1", "111"), reminder("u2", ""), reminder("u3", "111"), reminder("u4", "222")})
	require.Equal(t, "Upcoming meetings: <@111> <@222>", msg.Content)
	require.Len(t, msg.Embeds, 4)

	msg = Message([]Reminder{reminder("u2", "")})
	require.Equal(t, "Upcoming meetings", msg.Content)
}

func TestBatches(t *testing.T) {
	reminders := make([]Reminder, 23)
	for i := range reminders {
		reminders[i] = reminder(fmt.Sprint(i), "")
	}
	batches := Batches(reminders, maxEmbedsPerMessage)
	require.Len(t, batches, 3)
	require.Len(t, batches[2], 3)
	require.Empty(t, Batches(nil, maxEmbedsPerMessage))
}

func TestLogNotifier(t *testing.T) {
	require.NoError(t, Log{}.Notify(context.Background(), []Reminder{reminder("u1", "")}))
}

func TestNewDiscordRequiresChannel(t *testing.T) {
	_, err := NewDiscord("token", "")
	require.Error(t, err)
}
