// Package notify announces finalized leaderboard periods to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"flexboard/internal/model"
)

// Poster is the subset of *tele.Bot used to post announcements.
type Poster interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Announcer posts period winners to one chat.
type Announcer struct {
	poster Poster
	chat   *tele.Chat
}

// NewAnnouncer creates an Announcer backed by a bot that only sends messages.
func NewAnnouncer(token string, chatID int64) (*Announcer, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return NewAnnouncerWithPoster(bot, chatID), nil
}

// NewAnnouncerWithPoster creates an Announcer on top of an existing poster.
func NewAnnouncerWithPoster(p Poster, chatID int64) *Announcer {
	return &Announcer{poster: p, chat: &tele.Chat{ID: chatID}}
}

// NotifyReset posts the outcome of a finalized period.
func (a *Announcer) NotifyReset(ctx context.Context, result *model.ResetResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := a.poster.Send(a.chat, FormatReset(result)); err != nil {
		return fmt.Errorf("failed to post reset announcement: %w", err)
	}

	log.Info().
		Int64("chat_id", a.chat.ID).
		Str("leaderboard_type", string(result.LeaderboardType)).
		Msg("Reset announced")
	return nil
}

// FormatReset renders a reset as a chat message.
func FormatReset(result *model.ResetResult) string {
	var b strings.Builder

	title := strings.ToUpper(string(result.LeaderboardType[:1])) + string(result.LeaderboardType[1:])
	fmt.Fprintf(&b, "🏁 %s leaderboard closed", title)
	if result.Region != nil {
		fmt.Fprintf(&b, " (%s)", *result.Region)
	}
	b.WriteString("\n━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📅 %s → %s\n",
		result.PeriodStart.Format("2006-01-02"),
		result.PeriodEnd.Format("2006-01-02"))

	if result.TopUser == nil {
		b.WriteString("🏆 No participants this period\n")
	} else {
		name := result.TopUser.Username
		if name == "" {
			name = result.TopUser.UserID
		}
		fmt.Fprintf(&b, "🥇 %s: %d points (%s spent)\n",
			name, result.TopUser.TotalFlexPoints, result.TopUser.TotalSpent.StringFixed(2))
	}

	fmt.Fprintf(&b, "👥 Participants: %d\n", result.TotalParticipants)
	b.WriteString("━━━━━━━━━━━━━━━")

	return b.String()
}
