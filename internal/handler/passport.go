// Package handler provides Telegram bot command handlers for the passport.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"emirates-passport/internal/catalog"
	"emirates-passport/internal/model"
	"emirates-passport/internal/pkg/lock"
	"emirates-passport/internal/service"
)

// DefaultTimeout bounds the ledger work done for one update.
const DefaultTimeout = 10 * time.Second

// Ledger is the read side of the passport plus the traveller's profile.
type Ledger interface {
	GetBalance(ctx context.Context, user model.UserKey) (int64, error)
	GetRedemptions(ctx context.Context, user model.UserKey) (model.Redemptions, error)
	Summary(ctx context.Context, user model.UserKey) (*service.Summary, error)
	GetProfile(ctx context.Context, user model.UserKey) (model.Profile, error)
	UpdateProfile(ctx context.Context, user model.UserKey, edit func(*model.Profile)) (service.ProfileResult, error)
}

// profileFields maps /profile field names to the profile attribute they set.
var profileFields = map[string]func(p *model.Profile, v string){
	"name":     func(p *model.Profile, v string) { p.FullName = v },
	"email":    func(p *model.Profile, v string) { p.Email = v },
	"bio":      func(p *model.Profile, v string) { p.Bio = v },
	"place":    func(p *model.Profile, v string) { p.FavoriteEmiratesPlace = v },
	"hometown": func(p *model.Profile, v string) { p.Hometown = v },
}

// Redeemer exchanges points for rewards.
type Redeemer interface {
	Rewards() []model.Reward
	RedeemByID(ctx context.Context, user model.UserKey, rewardID int) (service.RedeemResult, error)
}

// Scanner records stamps from scanned payloads.
type Scanner interface {
	Scan(ctx context.Context, user model.UserKey, raw string) (service.ScanResult, error)
}

// PassportHandler handles passport commands and reward callbacks.
type PassportHandler struct {
	ledger   Ledger
	redeemer Redeemer
	scanner  Scanner
	// inFlight holds users with a scan or redemption being processed.
	// Updates arriving while one is in flight are turned away.
	inFlight *lock.UserLock
	timeout  time.Duration
}

// NewPassportHandler creates a new PassportHandler.
func NewPassportHandler(ledger Ledger, redeemer Redeemer, scanner Scanner) *PassportHandler {
	return &PassportHandler{
		ledger:   ledger,
		redeemer: redeemer,
		scanner:  scanner,
		inFlight: lock.NewUserLock(),
		timeout:  DefaultTimeout,
	}
}

// UserKeyFor returns the ledger identity of a Telegram user.
func UserKeyFor(sender *tele.User) (model.UserKey, error) {
	if sender == nil {
		return "", model.ErrInvalidUserKey
	}
	return model.ParseUserKey(fmt.Sprintf("tg:%d", sender.ID))
}

// HandleStart handles /start. A deep link payload is treated as a scan.
func (h *PassportHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	payload := ""
	if msg := c.Message(); msg != nil {
		payload = strings.TrimSpace(msg.Payload)
	}
	if payload == "" {
		return c.Reply(FormatWelcome(sender.FirstName))
	}
	return h.scan(c, sender, payload)
}

// HandleScan handles /scan <payload>.
func (h *PassportHandler) HandleScan(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	payload := ""
	if msg := c.Message(); msg != nil {
		payload = msg.Payload
	}
	if strings.TrimSpace(payload) == "" {
		return c.Reply("❌ Usage: /scan <placard text or link>")
	}
	return h.scan(c, sender, payload)
}

// HandleText treats plain text in a private chat as a scanned payload.
func (h *PassportHandler) HandleText(c tele.Context) error {
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil || chat.Type != tele.ChatPrivate {
		return nil
	}

	text := c.Text()
	if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "/") {
		return nil
	}
	return h.scan(c, sender, text)
}

func (h *PassportHandler) scan(c tele.Context, sender *tele.User, raw string) error {
	user, err := UserKeyFor(sender)
	if err != nil {
		return nil
	}

	if !h.inFlight.TryLock(user) {
		return c.Reply(MsgBusy)
	}
	defer h.inFlight.Unlock(user)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	res, err := h.scanner.Scan(ctx, user, raw)
	if err != nil {
		log.Error().Err(err).
			Str("user_key", user.String()).
			Msg("Failed to record scan")
		return c.Reply(MsgUnavailable)
	}

	return c.Reply(FormatScanResult(res))
}

// HandlePassport handles /passport.
func (h *PassportHandler) HandlePassport(c tele.Context) error {
	user, err := UserKeyFor(c.Sender())
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	sum, err := h.ledger.Summary(ctx, user)
	if err != nil {
		log.Error().Err(err).Str("user_key", user.String()).Msg("Failed to load passport")
		return c.Reply(MsgUnavailable)
	}
	return c.Reply(FormatPassport(sum))
}

// HandlePoints handles /points.
func (h *PassportHandler) HandlePoints(c tele.Context) error {
	user, err := UserKeyFor(c.Sender())
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	balance, redemptions, err := h.wallet(ctx, user)
	if err != nil {
		return c.Reply(MsgUnavailable)
	}
	return c.Reply(FormatPoints(balance, redemptions))
}

// HandleProfile handles /profile and /profile <field> <value>.
func (h *PassportHandler) HandleProfile(c tele.Context) error {
	user, err := UserKeyFor(c.Sender())
	if err != nil {
		return nil
	}

	payload := ""
	if msg := c.Message(); msg != nil {
		payload = strings.TrimSpace(msg.Payload)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if payload == "" {
		p, err := h.ledger.GetProfile(ctx, user)
		if err != nil {
			log.Error().Err(err).Str("user_key", user.String()).Msg("Failed to load profile")
			return c.Reply(MsgUnavailable)
		}
		return c.Reply(FormatProfile(p))
	}

	field, value, _ := strings.Cut(payload, " ")
	set, ok := profileFields[strings.ToLower(field)]
	if !ok {
		return c.Reply(MsgProfileUsage)
	}

	res, err := h.ledger.UpdateProfile(ctx, user, func(p *model.Profile) {
		set(p, value)
	})
	if errors.Is(err, service.ErrInvalidProfile) {
		return c.Reply(MsgProfileInvalid)
	}
	if err != nil {
		log.Error().Err(err).Str("user_key", user.String()).Msg("Failed to save profile")
		return c.Reply(MsgUnavailable)
	}
	if res.Sandboxed {
		return c.Reply(MsgDemoProfile)
	}
	return c.Reply("✅ Profile updated\n" + FormatProfile(res.Profile))
}

// HandleRewards handles /rewards and shows the rewards panel.
func (h *PassportHandler) HandleRewards(c tele.Context) error {
	user, err := UserKeyFor(c.Sender())
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	balance, redemptions, err := h.wallet(ctx, user)
	if err != nil {
		return c.Reply(MsgUnavailable)
	}
	return c.Reply(FormatRewardsMessage(balance), BuildRewardsPanel(h.redeemer.Rewards(), redemptions))
}

// HandleRedeem handles /redeem <id>.
func (h *PassportHandler) HandleRedeem(c tele.Context) error {
	user, err := UserKeyFor(c.Sender())
	if err != nil {
		return nil
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply(MsgRedeemUsage)
	}
	rewardID, err := strconv.Atoi(args[0])
	if err != nil || rewardID <= 0 {
		return c.Reply(MsgRedeemUsage)
	}

	text, _ := h.redeem(user, rewardID)
	return c.Reply(text)
}

// redeem runs a redemption and returns the reply text and whether it succeeded.
func (h *PassportHandler) redeem(user model.UserKey, rewardID int) (string, bool) {
	if !h.inFlight.TryLock(user) {
		return MsgBusy, false
	}
	defer h.inFlight.Unlock(user)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	res, err := h.redeemer.RedeemByID(ctx, user, rewardID)
	if errors.Is(err, service.ErrRewardNotFound) {
		return MsgRewardNotFound, false
	}
	if err != nil {
		log.Error().Err(err).
			Str("user_key", user.String()).
			Int("reward_id", rewardID).
			Msg("Failed to redeem reward")
		return MsgUnavailable, false
	}
	return FormatRedeemResult(res), res.Status == service.RedeemOK
}

// HandleRewardCallback handles the buttons of the rewards panel.
func (h *PassportHandler) HandleRewardCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}
	user, err := UserKeyFor(c.Sender())
	if err != nil {
		return c.Respond()
	}

	// Telebot v3 prefixes button data with \f
	data := strings.TrimPrefix(callback.Data, "\f")

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	switch {
	case data == CallbackRewardRefresh || data == CallbackRewardCancel:
		balance, redemptions, err := h.wallet(ctx, user)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: MsgUnavailable})
		}
		_ = c.Respond()
		return c.Edit(FormatRewardsMessage(balance), BuildRewardsPanel(h.redeemer.Rewards(), redemptions))

	case strings.HasPrefix(data, CallbackReward):
		rewardID, ok := parseCallbackID(data, CallbackReward)
		reward, found := catalog.GetReward(rewardID)
		if !ok || !found {
			return c.Respond(&tele.CallbackResponse{Text: MsgRewardNotFound})
		}
		balance, redemptions, err := h.wallet(ctx, user)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: MsgUnavailable})
		}
		_ = c.Respond()

		redeemed := redemptions.Has(reward.ID)
		markup := BuildConfirmPanel(reward.ID)
		if redeemed || balance < reward.Cost {
			markup = BuildBackPanel()
		}
		return c.Edit(FormatRewardDetail(reward, balance, redeemed), markup)

	case strings.HasPrefix(data, CallbackRedeem):
		rewardID, ok := parseCallbackID(data, CallbackRedeem)
		if !ok {
			return c.Respond(&tele.CallbackResponse{Text: MsgRewardNotFound})
		}
		text, redeemed := h.redeem(user, rewardID)
		if redeemed {
			_ = c.Respond(&tele.CallbackResponse{Text: "🎁 Redeemed!"})
		} else {
			_ = c.Respond()
		}
		return c.Edit(text, BuildBackPanel())
	}

	log.Debug().Str("data", data).Msg("Unknown reward callback")
	return c.Respond()
}

// wallet loads the balance and redemption history of user.
func (h *PassportHandler) wallet(ctx context.Context, user model.UserKey) (int64, model.Redemptions, error) {
	redemptions, err := h.ledger.GetRedemptions(ctx, user)
	if err != nil {
		log.Error().Err(err).Str("user_key", user.String()).Msg("Failed to load redemptions")
		return 0, nil, err
	}
	balance, err := h.ledger.GetBalance(ctx, user)
	if err != nil {
		log.Error().Err(err).Str("user_key", user.String()).Msg("Failed to load balance")
		return 0, nil, err
	}
	return balance, redemptions, nil
}
