package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"emirates-passport/internal/model"
)

// Callback data prefixes
const (
	CallbackReward        = "reward:"        // reward:3
	CallbackRedeem        = "redeem:"        // redeem:3
	CallbackRewardCancel  = "reward_cancel"  // reward_cancel
	CallbackRewardRefresh = "reward_refresh" // reward_refresh
)

// BuildRewardsPanel creates the rewards panel with one button per reward.
// Rewards the user already holds are marked and lead to their detail only.
func BuildRewardsPanel(rewards []model.Reward, redeemed model.Redemptions) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	var currentRow []tele.Btn
	for i, reward := range rewards {
		label := fmt.Sprintf("%s %s (%d pts)", reward.Icon, reward.Name, reward.Cost)
		if redeemed.Has(reward.ID) {
			label = "✅ " + reward.Name
		}
		currentRow = append(currentRow, markup.Data(label, CallbackReward+strconv.Itoa(reward.ID)))

		// 2 buttons per row
		if len(currentRow) == 2 || i == len(rewards)-1 {
			rows = append(rows, markup.Row(currentRow...))
			currentRow = nil
		}
	}

	rows = append(rows, markup.Row(markup.Data("🔄 Refresh", CallbackRewardRefresh)))

	markup.Inline(rows...)
	return markup
}

// BuildConfirmPanel creates the redemption confirmation panel.
func BuildConfirmPanel(rewardID int) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	redeemBtn := markup.Data("✅ Redeem", CallbackRedeem+strconv.Itoa(rewardID))
	cancelBtn := markup.Data("❌ Back", CallbackRewardCancel)

	markup.Inline(markup.Row(redeemBtn, cancelBtn))
	return markup
}

// BuildBackPanel creates a panel that only returns to the rewards list.
func BuildBackPanel() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("⬅️ Rewards", CallbackRewardRefresh)))
	return markup
}

// parseCallbackID extracts the numeric ID that follows prefix in data.
func parseCallbackID(data, prefix string) (int, bool) {
	if !strings.HasPrefix(data, prefix) {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(data, prefix))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
