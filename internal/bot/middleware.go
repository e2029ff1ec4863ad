package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"emirates-passport/internal/config"
)

// privateUserCache tracks users who have used the bot in whitelisted groups.
// This allows them to use the bot in private chat, where placards are scanned.
var (
	privateUserCache = make(map[int64]bool)
	privateUserMu    sync.RWMutex
)

// AllowPrivateUser marks a user as allowed to use private chat.
func AllowPrivateUser(userID int64) {
	privateUserMu.Lock()
	defer privateUserMu.Unlock()
	privateUserCache[userID] = true
}

// IsPrivateUserAllowed checks if a user is allowed to use private chat.
func IsPrivateUserAllowed(userID int64) bool {
	privateUserMu.RLock()
	defer privateUserMu.RUnlock()
	return privateUserCache[userID]
}

// WhitelistMiddleware creates a middleware that checks if the chat is whitelisted.
// With an empty whitelist every chat is served.
func WhitelistMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !allowed(cfg, c.Chat(), c.Sender()) {
				return nil
			}
			return next(c)
		}
	}
}

// allowed decides whether an update from sender in chat is served.
// Senders seen in a whitelisted group are remembered for private chat.
func allowed(cfg *config.Config, chat *tele.Chat, sender *tele.User) bool {
	if chat == nil || sender == nil {
		return false
	}

	if chat.Type == tele.ChatPrivate {
		if len(cfg.Whitelist.Chats) == 0 || IsPrivateUserAllowed(sender.ID) {
			return true
		}
		log.Debug().
			Int64("user_id", sender.ID).
			Msg("Ignoring private chat from user not in whitelist cache")
		return false
	}

	if !cfg.IsChatAllowed(chat.ID) {
		log.Debug().
			Int64("chat_id", chat.ID).
			Msg("Ignoring update from non-whitelisted chat")
		return false
	}

	AllowPrivateUser(sender.ID)
	return true
}

// LoggingMiddleware creates a middleware that logs all incoming updates.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received update")

			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ Something went wrong, please try again")
				}
			}()
			return next(c)
		}
	}
}
