package notifier

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/shopspring/decimal"
)

// Sender delivers rendered messages. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Config controls where and how notifications are rendered.
type Config struct {
	ChatID   int64
	Currency string
}

// Notifier renders engine events into chat messages. It is an events.Handler.
type Notifier struct {
	sender   Sender
	resolver ProfileResolver
	config   Config
}

// New creates a notifier. A nil resolver falls back to catalog data.
func New(sender Sender, resolver ProfileResolver, config Config) *Notifier {
	if resolver == nil {
		resolver = FallbackResolver{}
	}
	return &Notifier{sender: sender, resolver: resolver, config: config}
}

// HandleEvent renders e and sends it. Events with no chat rendering are ignored.
func (n *Notifier) HandleEvent(ctx context.Context, e events.Event) error {
	text, photo := n.render(ctx, e)
	if text == "" {
		return nil
	}

	var msg tgbotapi.Chattable
	if photo != "" {
		p := tgbotapi.NewPhoto(n.config.ChatID, tgbotapi.FileURL(photo))
		p.Caption = text
		p.ParseMode = tgbotapi.ModeHTML
		msg = p
	} else {
		m := tgbotapi.NewMessage(n.config.ChatID, text)
		m.ParseMode = tgbotapi.ModeHTML
		msg = m
	}

	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("send %s notification: %w", e.Type, err)
	}
	return nil
}

// render returns the message text and, for lot announcements, an optional
// photo URL.
func (n *Notifier) render(ctx context.Context, e events.Event) (string, string) {
	switch p := e.Payload.(type) {
	case events.RoundOpenedPayload:
		prof := n.resolver.Resolve(ctx, p.Lot)
		var b strings.Builder
		fmt.Fprintf(&b, "🏏 <b>Round %d: %s</b>", p.RoundSeq, esc(prof.DisplayName))
		if prof.Username != "" {
			fmt.Fprintf(&b, " (@%s)", esc(prof.Username))
		}
		fmt.Fprintf(&b, "\nRole: %s", esc(p.Lot.Role))
		if p.Lot.Specialty != "" {
			fmt.Fprintf(&b, "\nSpecialty: %s", esc(p.Lot.Specialty))
		}
		if p.Lot.Rating != nil {
			fmt.Fprintf(&b, "\nRating: %.1f", *p.Lot.Rating)
		}
		fmt.Fprintf(&b, "\nBase price: %s\nBidding closes in %ds", n.money(p.BasePrice), p.TimerSec)
		photo := ""
		if p.ShowPhotos {
			photo = prof.PhotoURL
		}
		return b.String(), photo

	case events.BidAcceptedPayload:
		text := fmt.Sprintf("💰 <b>%s</b> bids %s for %s", esc(p.Team), n.money(p.Amount), esc(p.Lot.Name))
		if p.Outbid() {
			text += fmt.Sprintf("\n<b>%s</b> has been outbid", esc(p.PreviousLeader))
		}
		return text, ""

	case events.ReminderDuePayload:
		leader := "no bids yet"
		if p.LeadingTeam != "" {
			leader = fmt.Sprintf("%s leads with %s", esc(p.LeadingTeam), n.money(p.CurrentBid))
		}
		return fmt.Sprintf("⏰ %ds left for %s: %s", p.SecondsLeft, esc(p.Lot.Name), leader), ""

	case events.RoundClosedPayload:
		if p.Status == models.SettlementSold {
			return fmt.Sprintf("✅ <b>SOLD</b>: %s to <b>%s</b> for %s", esc(p.Lot.Name), esc(p.Team), n.money(p.Price)), ""
		}
		if p.Status == models.SettlementSkipped {
			return fmt.Sprintf("⏭ %s was skipped", esc(p.Lot.Name)), ""
		}
		return fmt.Sprintf("❌ <b>UNSOLD</b>: %s", esc(p.Lot.Name)), ""

	case events.SettlementRejectedPayload:
		return fmt.Sprintf("⚠️ Sale of %s to %s for %s could not be settled (%s). Bidding reopens at base price.",
			esc(p.Lot.Name), esc(p.Team), n.money(p.Amount), esc(p.Reason)), ""

	case events.CatalogExhaustedPayload:
		var b strings.Builder
		b.WriteString("🏁 <b>Auction complete</b>")
		fmt.Fprintf(&b, "\nRounds: %d, sold: %d, unsold: %d", p.FinalStats.TotalRounds, p.FinalStats.LotsSold, p.UnsoldLots)
		fmt.Fprintf(&b, "\nTotal spent: %s", n.money(p.FinalStats.TotalSpent))
		if m := p.FinalStats.MostExpensive; m != nil {
			fmt.Fprintf(&b, "\nMost expensive: %s to %s for %s", esc(m.Lot.Name), esc(m.Team), n.money(m.Price))
		}
		for i, s := range p.Leaderboard {
			fmt.Fprintf(&b, "\n%d. %s: %d players, %s left", i+1, esc(s.Team), s.TotalPlayers, n.money(s.RemainingPurse))
		}
		return b.String(), ""

	case events.AuctionResetPayload:
		return fmt.Sprintf("🔄 Auction reset. %d lots available.", p.AvailableLots), ""
	}
	return "", ""
}

func (n *Notifier) money(d decimal.Decimal) string {
	return n.config.Currency + d.String()
}

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}
