package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/auction/ledger"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent)
	switch m := f.sent[len(f.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.PhotoConfig:
		return m.Caption
	}
	t.Fatalf("unexpected chattable %T", f.sent[len(f.sent)-1])
	return ""
}

type fakeLookup struct {
	chat  tgbotapi.Chat
	err   error
	calls int
}

func (f *fakeLookup) GetChat(tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	f.calls++
	return f.chat, f.err
}

func (f *fakeLookup) GetFileDirectURL(fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

var virat = models.Lot{
	ID:         uuid.New(),
	Name:       "Virat",
	Role:       "Batsman",
	BasePrice:  decimal.NewFromInt(100),
	ProfileRef: "42",
	Username:   "@vk",
}

func event(typ events.Type, payload any) events.Event {
	return events.New(typ, 1, time.Now(), payload)
}

func TestRenderBidAndOutbid(t *testing.T) {
	s := &fakeSender{}
	n := New(s, nil, Config{ChatID: 7, Currency: "₹"})
	ctx := context.Background()

	require.NoError(t, n.HandleEvent(ctx, event(events.TypeBidAccepted, events.BidAcceptedPayload{
		Lot: virat, Team: "Kings", Amount: decimal.NewFromInt(105),
	})))
	assert.Equal(t, "💰 <b>Kings</b> bids ₹105 for Virat", s.lastText(t))

	require.NoError(t, n.HandleEvent(ctx, event(events.TypeBidAccepted, events.BidAcceptedPayload{
		Lot: virat, Team: "Royals", Amount: decimal.NewFromInt(120), PreviousLeader: "Kings",
	})))
	assert.Contains(t, s.lastText(t), "<b>Kings</b> has been outbid")

	msg, ok := s.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}

func TestRenderRoundOpenedWithPhoto(t *testing.T) {
	s := &fakeSender{}
	lookup := &fakeLookup{chat: tgbotapi.Chat{
		FirstName: "Virat",
		LastName:  "K",
		UserName:  "king_kohli",
		Photo:     &tgbotapi.ChatPhoto{BigFileID: "big"},
	}}
	n := New(s, NewTelegramResolver(lookup), Config{ChatID: 7})

	payload := events.RoundOpenedPayload{RoundSeq: 3, Lot: virat, BasePrice: virat.BasePrice, TimerSec: 30, ShowPhotos: true}
	require.NoError(t, n.HandleEvent(context.Background(), event(events.TypeRoundOpened, payload)))

	photo, ok := s.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.FileURL("https://files.example/big"), photo.File)
	assert.Contains(t, photo.Caption, "Round 3: Virat K</b> (@king_kohli)")
	assert.Contains(t, photo.Caption, "Base price: 100")

	payload.ShowPhotos = false
	require.NoError(t, n.HandleEvent(context.Background(), event(events.TypeRoundOpened, payload)))
	_, ok = s.sent[1].(tgbotapi.MessageConfig)
	assert.True(t, ok, "photos disabled sends text only")
	assert.Equal(t, 1, lookup.calls, "profile is cached")
}

func TestResolverFallback(t *testing.T) {
	ctx := context.Background()
	lookup := &fakeLookup{err: errors.New("chat not found")}
	r := NewTelegramResolver(lookup)

	p := r.Resolve(ctx, virat)
	assert.Equal(t, Profile{DisplayName: "Virat", Username: "vk"}, p)

	noRef := virat
	noRef.ProfileRef = ""
	assert.Equal(t, "Virat", r.Resolve(ctx, noRef).DisplayName)

	badRef := virat
	badRef.ProfileRef = "not-a-number"
	assert.Equal(t, "vk", r.Resolve(ctx, badRef).Username)
	assert.Equal(t, 1, lookup.calls)
}

func TestRenderSettlements(t *testing.T) {
	s := &fakeSender{}
	n := New(s, nil, Config{})
	ctx := context.Background()

	tests := []struct {
		name    string
		event   events.Event
		want    string
		content bool
	}{
		{
			name:  "sold",
			event: event(events.TypeRoundClosed, events.RoundClosedPayload{Status: models.SettlementSold, Lot: virat, Team: "Kings", Price: decimal.NewFromInt(120)}),
			want:  "✅ <b>SOLD</b>: Virat to <b>Kings</b> for 120",
		},
		{
			name:  "unsold",
			event: event(events.TypeRoundClosed, events.RoundClosedPayload{Status: models.SettlementUnsold, Lot: virat, Team: models.NoTeam}),
			want:  "❌ <b>UNSOLD</b>: Virat",
		},
		{
			name:  "skipped",
			event: event(events.TypeRoundClosed, events.RoundClosedPayload{Status: models.SettlementSkipped, Lot: virat}),
			want:  "⏭ Virat was skipped",
		},
		{
			name:  "reminder",
			event: event(events.TypeReminderDue, events.ReminderDuePayload{Lot: virat, SecondsLeft: 3}),
			want:  "⏰ 3s left for Virat: no bids yet",
		},
		{
			name: "exhausted",
			event: event(events.TypeCatalogExhausted, events.CatalogExhaustedPayload{
				FinalStats:  models.AggregateStats{TotalRounds: 2, LotsSold: 1, TotalSpent: decimal.NewFromInt(120)},
				Leaderboard: []ledger.TeamStats{{Team: "Kings", TotalPlayers: 1, RemainingPurse: decimal.NewFromInt(880)}},
				UnsoldLots:  1,
			}),
			want:    "1. Kings: 1 players, 880 left",
			content: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, n.HandleEvent(ctx, tt.event))
			if tt.content {
				assert.Contains(t, s.lastText(t), tt.want)
			} else {
				assert.Equal(t, tt.want, s.lastText(t))
			}
		})
	}
}

func TestIgnoredEventsAndSendErrors(t *testing.T) {
	s := &fakeSender{}
	n := New(s, nil, Config{})
	ctx := context.Background()

	require.NoError(t, n.HandleEvent(ctx, event(events.TypeSettingsChanged, events.SettingsChangedPayload{Settings: models.DefaultSettings()})))
	assert.Empty(t, s.sent)

	s.err = errors.New("flood control")
	err := n.HandleEvent(ctx, event(events.TypeAuctionReset, events.AuctionResetPayload{AvailableLots: 4}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AuctionReset")
}

func TestEscapesHTML(t *testing.T) {
	s := &fakeSender{}
	n := New(s, nil, Config{})
	lot := virat
	lot.Name = "<script>"
	require.NoError(t, n.HandleEvent(context.Background(), event(events.TypeRoundClosed, events.RoundClosedPayload{Status: models.SettlementUnsold, Lot: lot})))
	assert.Contains(t, s.lastText(t), "&lt;script&gt;")
}
