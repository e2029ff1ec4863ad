// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"emirates-passport/internal/config"
	"emirates-passport/internal/handler"
)

// Commands are the bot commands advertised in the Telegram menu.
var Commands = []tele.Command{
	{Text: "start", Description: "Open your passport"},
	{Text: "passport", Description: "Show collected stamps"},
	{Text: "points", Description: "Show your points balance"},
	{Text: "rewards", Description: "Browse and redeem rewards"},
	{Text: "redeem", Description: "Redeem a reward by id"},
	{Text: "scan", Description: "Stamp a location from placard text"},
	{Text: "profile", Description: "View or edit your profile"},
}

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	passport *handler.PassportHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Ledger   handler.Ledger
	Redeemer handler.Redeemer
	Scanner  handler.Scanner
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Bot handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:      teleBot,
		cfg:      deps.Config,
		passport: handler.NewPassportHandler(deps.Ledger, deps.Redeemer, deps.Scanner),
	}

	b.registerMiddleware()
	b.registerHandlers()

	if err := teleBot.SetCommands(Commands); err != nil {
		log.Warn().Err(err).Msg("Failed to set bot commands")
	}

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.passport.HandleStart)
	b.bot.Handle("/scan", b.passport.HandleScan)
	b.bot.Handle("/passport", b.passport.HandlePassport)
	b.bot.Handle("/points", b.passport.HandlePoints)
	b.bot.Handle("/rewards", b.passport.HandleRewards)
	b.bot.Handle("/redeem", b.passport.HandleRedeem)
	b.bot.Handle("/profile", b.passport.HandleProfile)

	// Plain text in a private chat is a scanned placard
	b.bot.Handle(tele.OnText, b.passport.HandleText)

	// Rewards panel buttons
	b.bot.Handle(tele.OnCallback, b.passport.HandleRewardCallback)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
