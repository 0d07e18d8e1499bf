package notifier

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Profile is the display identity of a lot.
type Profile struct {
	DisplayName string
	Username    string
	PhotoURL    string
}

// ProfileResolver looks up a lot's external profile. Implementations must
// never fail: they fall back to the catalog name and username.
type ProfileResolver interface {
	Resolve(ctx context.Context, lot models.Lot) Profile
}

// FallbackResolver answers from catalog data only.
type FallbackResolver struct{}

func (FallbackResolver) Resolve(_ context.Context, lot models.Lot) Profile {
	return fallbackProfile(lot)
}

func fallbackProfile(lot models.Lot) Profile {
	return Profile{DisplayName: lot.Name, Username: strings.TrimPrefix(lot.Username, "@")}
}

// ChatLookup is the part of the bot API used to resolve profiles.
type ChatLookup interface {
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetFileDirectURL(fileID string) (string, error)
}

// TelegramResolver resolves lots whose ProfileRef is a numeric chat id.
// Successful lookups are cached for the life of the resolver.
type TelegramResolver struct {
	bot ChatLookup

	mu    sync.Mutex
	cache map[int64]Profile
}

// NewTelegramResolver creates a resolver backed by bot.
func NewTelegramResolver(bot ChatLookup) *TelegramResolver {
	return &TelegramResolver{bot: bot, cache: make(map[int64]Profile)}
}

func (r *TelegramResolver) Resolve(_ context.Context, lot models.Lot) Profile {
	fallback := fallbackProfile(lot)
	if lot.ProfileRef == "" {
		return fallback
	}
	chatID, err := strconv.ParseInt(lot.ProfileRef, 10, 64)
	if err != nil {
		return fallback
	}

	r.mu.Lock()
	cached, ok := r.cache[chatID]
	r.mu.Unlock()
	if ok {
		return cached
	}

	chat, err := r.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Str("lot", lot.Name).Msg("profile lookup failed, using catalog data")
		return fallback
	}

	p := fallback
	if name := strings.TrimSpace(chat.FirstName + " " + chat.LastName); name != "" {
		p.DisplayName = name
	}
	if chat.UserName != "" {
		p.Username = chat.UserName
	}
	if chat.Photo != nil && chat.Photo.BigFileID != "" {
		if url, err := r.bot.GetFileDirectURL(chat.Photo.BigFileID); err == nil {
			p.PhotoURL = url
		} else {
			log.Debug().Err(err).Int64("chat_id", chatID).Msg("failed to resolve profile photo")
		}
	}

	r.mu.Lock()
	r.cache[chatID] = p
	r.mu.Unlock()
	return p
}
