package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"meetroom/src-server/model"

	"github.com/bwmarrin/discordgo"
)

// discord rejects messages carrying more embeds than this
const maxEmbedsPerMessage = 10

// Reminder is one due activity and the user it belongs to.
type Reminder struct {
	Activity model.Activity
	User     *model.User
}

type Notifier interface {
	Notify(ctx context.Context, reminders []Reminder) error
}

// Log writes reminders to the default logger. Used when no Discord channel
// is configured.
type Log struct{}

func (Log) Notify(_ context.Context, reminders []Reminder) error {
	for _, r := range reminders {
		slog.Info("reminder",
			"user_id", r.User.ID,
			"event_id", r.Activity.EventID,
			"subject", r.Activity.Subject,
			"date", r.Activity.DateLabel,
			"start", r.Activity.LocalStart,
			"timezone", r.Activity.TZName,
		)
	}
	return nil
}

// Discord posts reminders as embeds into one channel, mentioning the users
// that have a linked Discord account.
type Discord struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscord(token, channelID string) (*Discord, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("NewDiscord: token and channel id are required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("NewDiscord: %w", err)
	}
	return &Discord{session: session, channelID: channelID}, nil
}

func (d *Discord) Notify(_ context.Context, reminders []Reminder) error {
	for _, batch := range Batches(reminders, maxEmbedsPerMessage) {
		if _, err := d.session.ChannelMessageSendComplex(d.channelID, Message(batch)); err != nil {
			return fmt.Errorf("(*Discord).Notify: can't send message: %w", err)
		}
	}
	return nil
}

func Batches(reminders []Reminder, size int) [][]Reminder {
	batches := [][]Reminder{}
	for len(reminders) > 0 {
		n := min(size, len(reminders))
		batches = append(batches, reminders[:n])
		reminders = reminders[n:]
	}
	return batches
}

// Message builds one channel message for a batch of reminders.
func Message(batch []Reminder) *discordgo.MessageSend {
	mentions := []string{}
	seen := map[string]bool{}
	embeds := make([]*discordgo.MessageEmbed, len(batch))
	for i, r := range batch {
		embeds[i] = Embed(r)
		if r.User.DiscordID != "" && !seen[r.User.DiscordID] {
			seen[r.User.DiscordID] = true
			mentions = append(mentions, "<@"+r.User.DiscordID+">")
		}
	}
	content := "Upcoming meetings"
	if len(mentions) > 0 {
		content += ": " + strings.Join(mentions, " ")
	}
	return &discordgo.MessageSend{
		Content: content,
		Embeds:  embeds,
	}
}

func Embed(r Reminder) *discordgo.MessageEmbed {
	act := r.Activity
	embed := &discordgo.MessageEmbed{
		Title: act.Subject,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Date",
				Value:  act.DateLabel,
				Inline: true,
			},
			{
				Name:   "Time",
				Value:  fmt.Sprintf("%s - %s (%s)", act.LocalStart, act.LocalEnd, act.TZName),
				Inline: true,
			},
			{
				Name:   "UTC",
				Value:  act.UTCRange,
				Inline: true,
			},
			{
				Name:   "Starts",
				Value:  fmt.Sprintf("<t:%d:R>", act.StartDate),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: act.EventID,
		},
		Author: &discordgo.MessageEmbedAuthor{
			Name: r.User.Name,
		},
	}
	if act.Duration != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Duration",
			Value:  act.Duration,
			Inline: true,
		})
	}
	if act.LocationSummary != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Location",
			Value: act.LocationSummary,
		})
	}
	return embed
}
