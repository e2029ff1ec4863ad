package handler

import (
	"fmt"
	"strings"

	"emirates-passport/internal/catalog"
	"emirates-passport/internal/model"
	"emirates-passport/internal/service"
)

const separator = "━━━━━━━━━━━━━━━\n"

// Fixed replies
const (
	MsgUnavailable    = "❌ The passport office is unavailable right now, please try again shortly"
	MsgBusy           = "⏳ Still working on your last request, one moment"
	MsgRedeemUsage    = "❌ Usage: /redeem <reward id>\nSee /rewards for the list"
	MsgRewardNotFound = "❌ There is no reward with that id, see /rewards"
	MsgUnrecognized   = "❓ That code is not a passport location. Try scanning the placard again"
	MsgDemoRedeem     = "🧪 Demo passports cannot redeem rewards"
	MsgDemoProfile    = "🧪 Demo mode: profile changes are not saved"
	MsgProfileUsage   = "❌ Usage: /profile <name|email|bio|place|hometown> <value>\nLeave the value empty to clear a field"
	MsgProfileInvalid = "❌ That value was not accepted. Names and places are up to 100 characters, the bio up to 500, and the email must be a valid address"
)

// FormatWelcome creates the /start message shown when no location payload is present.
func FormatWelcome(name string) string {
	if name == "" {
		name = "traveller"
	}
	msg := fmt.Sprintf("🛂 Welcome to the Emirates Passport, %s!\n", name)
	msg += separator
	msg += "Scan the QR placard at a landmark to collect its stamp.\n\n"
	msg += "/passport - your stamps\n"
	msg += "/points - your balance\n"
	msg += "/rewards - browse rewards\n"
	msg += "/redeem <id> - claim a reward\n"
	msg += "/profile - about you"
	return msg
}

// FormatScanResult creates the reply for a scan outcome.
func FormatScanResult(res service.ScanResult) string {
	loc := res.Location
	switch res.Status {
	case service.ScanCollected:
		msg := "🎉 Stamp collected!\n"
		msg += separator
		msg += fmt.Sprintf("%s %s\n", iconOr(loc.Icon, "📍"), loc.Name)
		msg += fmt.Sprintf("🏙 %s\n", emirateName(loc.EmirateID))
		msg += fmt.Sprintf("⭐ +%d points\n", loc.PointValue)
		msg += separator
		msg += fmt.Sprintf("💰 Balance: %d points", res.Balance)
		return msg
	case service.ScanAlreadyCollected:
		return fmt.Sprintf("📘 You already have the %s stamp\n💰 Balance: %d points", loc.Name, res.Balance)
	case service.ScanSandboxed:
		return fmt.Sprintf("🧪 Demo mode: %s recognised, nothing was saved", loc.Name)
	default:
		return MsgUnrecognized
	}
}

// FormatPassport creates the /passport message with one line per emirate.
func FormatPassport(sum *service.Summary) string {
	msg := "🛂 Your Emirates Passport\n"
	msg += separator
	for _, page := range sum.Emirates {
		msg += fmt.Sprintf("%s %s %d/%d\n",
			progressBar(page.Collected, page.Emirate.TotalStampSlots),
			page.Emirate.Name, page.Collected, page.Emirate.TotalStampSlots)
		for _, s := range page.Stamps {
			msg += fmt.Sprintf("   • %s (+%d)\n", s.LocationName, s.PointValue)
		}
	}
	msg += separator
	msg += fmt.Sprintf("📊 Completion: %d%% (%d/%d)\n", sum.Completion, sum.Collected, sum.TotalSlots)
	msg += fmt.Sprintf("💰 Balance: %d points", sum.Balance)
	return msg
}

// FormatPoints creates the /points message.
func FormatPoints(balance int64, redemptions model.Redemptions) string {
	msg := fmt.Sprintf("💰 Balance: %d points\n", balance)
	if len(redemptions) == 0 {
		return msg + "🎁 No rewards redeemed yet"
	}
	msg += fmt.Sprintf("🎁 Rewards redeemed: %d (%d points spent)", len(redemptions), redemptions.Spent())
	return msg
}

// FormatRewardsMessage creates the header of the rewards panel.
func FormatRewardsMessage(balance int64) string {
	msg := "🎁 Passport Rewards\n"
	msg += separator
	msg += fmt.Sprintf("💰 Your balance: %d points\n", balance)
	msg += separator
	msg += "Tap a reward for details:"
	return msg
}

// FormatRewardDetail creates the detail view of a single reward.
func FormatRewardDetail(reward model.Reward, balance int64, redeemed bool) string {
	msg := fmt.Sprintf("%s %s\n", iconOr(reward.Icon, "🎁"), reward.Name)
	msg += separator
	msg += fmt.Sprintf("💎 Cost: %d points\n", reward.Cost)
	msg += fmt.Sprintf("🏷 Category: %s\n", reward.Category)
	msg += fmt.Sprintf("📝 %s\n", reward.Description)
	msg += separator
	msg += fmt.Sprintf("💰 Your balance: %d points\n", balance)

	switch {
	case redeemed:
		msg += "✅ Already redeemed"
	case balance < reward.Cost:
		msg += fmt.Sprintf("❌ You need %d more points", reward.Cost-balance)
	default:
		msg += "Redeem this reward?"
	}
	return msg
}

// FormatRedeemResult creates the reply for a redemption outcome.
func FormatRedeemResult(res service.RedeemResult) string {
	reward := res.Reward
	switch res.Status {
	case service.RedeemOK:
		msg := "🎁 Reward redeemed!\n"
		msg += separator
		msg += fmt.Sprintf("%s %s\n", iconOr(reward.Icon, "🎁"), reward.Name)
		msg += fmt.Sprintf("🎟 Voucher: %s\n", res.Redemption.Code)
		msg += separator
		msg += fmt.Sprintf("💰 Balance: %d points", res.Balance)
		return msg
	case service.RedeemAlreadyRedeemed:
		return fmt.Sprintf("ℹ️ You have already redeemed %s", reward.Name)
	case service.RedeemInsufficientPoints:
		return fmt.Sprintf("❌ Not enough points for %s\nYou need %d more (balance: %d)", reward.Name, res.Shortfall, res.Balance)
	default:
		return MsgDemoRedeem
	}
}

// FormatProfile creates the /profile message.
func FormatProfile(p model.Profile) string {
	msg := "👤 Your Profile\n"
	msg += separator
	msg += fmt.Sprintf("Name: %s\n", orDash(p.FullName))
	msg += fmt.Sprintf("Email: %s\n", orDash(p.Email))
	msg += fmt.Sprintf("Hometown: %s\n", orDash(p.Hometown))
	msg += fmt.Sprintf("Favourite place: %s\n", orDash(p.FavoriteEmiratesPlace))
	msg += fmt.Sprintf("Bio: %s\n", orDash(p.Bio))
	msg += separator
	msg += "Edit with /profile <name|email|bio|place|hometown> <value>"
	return msg
}

// progressBar renders collected out of slots as filled and empty dots.
func progressBar(collected, slots int) string {
	if slots <= 0 {
		return ""
	}
	if collected > slots {
		collected = slots
	}
	return strings.Repeat("●", collected) + strings.Repeat("○", slots-collected)
}

func emirateName(id string) string {
	if e, ok := catalog.GetEmirate(id); ok {
		return e.Name
	}
	return id
}

func iconOr(icon, fallback string) string {
	if icon == "" {
		return fallback
	}
	return icon
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
