package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"emirates-passport/internal/catalog"
	"emirates-passport/internal/model"
)

// Redemption errors.
var (
	ErrRewardNotFound = errors.New("reward not found")
	ErrInvalidReward  = errors.New("invalid reward: cost must be positive")
)

// RedeemStatus is the outcome of a redemption attempt.
type RedeemStatus int

// Redemption outcomes, in the order they are checked.
const (
	RedeemOK RedeemStatus = iota
	RedeemNotPermitted
	RedeemAlreadyRedeemed
	RedeemInsufficientPoints
)

// String returns the wire name of the status.
func (s RedeemStatus) String() string {
	switch s {
	case RedeemOK:
		return "ok"
	case RedeemNotPermitted:
		return "not_permitted"
	case RedeemAlreadyRedeemed:
		return "already_redeemed"
	case RedeemInsufficientPoints:
		return "insufficient_points"
	default:
		return "unknown"
	}
}

// RedeemResult is the outcome of Redeem.
type RedeemResult struct {
	Status RedeemStatus
	Reward model.Reward
	// Shortfall is how many points are missing when Status is RedeemInsufficientPoints.
	Shortfall int64
	// Redemption is the new record when Status is RedeemOK.
	Redemption model.Redemption
	// Balance is the balance after the attempt.
	Balance int64
}

// RedemptionService exchanges points for catalogue rewards.
// It shares storage, locking and notification with the ledger.
type RedemptionService struct {
	ledger *LedgerService
}

// NewRedemptionService creates a new RedemptionService instance.
func NewRedemptionService(ledger *LedgerService) *RedemptionService {
	return &RedemptionService{ledger: ledger}
}

// Rewards returns the reward catalogue in display order.
func (s *RedemptionService) Rewards() []model.Reward {
	return catalog.GetAllRewards()
}

// RedeemByID redeems a catalogue reward by ID.
// Returns ErrRewardNotFound for unknown IDs.
func (s *RedemptionService) RedeemByID(ctx context.Context, user model.UserKey, rewardID int) (RedeemResult, error) {
	reward, ok := catalog.GetReward(rewardID)
	if !ok {
		return RedeemResult{}, ErrRewardNotFound
	}
	return s.Redeem(ctx, user, reward)
}

// Redeem claims reward for user as a single check-and-deduct step.
// Checks run in order: demo identity, already redeemed, affordability.
// Only on success is a redemption record written and points-changed published.
func (s *RedemptionService) Redeem(ctx context.Context, user model.UserKey, reward model.Reward) (RedeemResult, error) {
	if reward.Cost <= 0 {
		return RedeemResult{}, ErrInvalidReward
	}

	l := s.ledger
	if l.IsDemo(user) {
		l.metrics.RecordRedemption(RedeemNotPermitted.String())
		return RedeemResult{Status: RedeemNotPermitted, Reward: reward}, nil
	}

	result := RedeemResult{Reward: reward}
	err := l.locks.WithLockContext(ctx, user, l.lockTimeout, func() error {
		book, redemptions, err := l.history(ctx, user)
		if err != nil {
			return err
		}
		balance := model.Balance(book, redemptions)
		result.Balance = balance

		if redemptions.Has(reward.ID) {
			result.Status = RedeemAlreadyRedeemed
			return nil
		}
		if balance < reward.Cost {
			result.Status = RedeemInsufficientPoints
			result.Shortfall = reward.Cost - balance
			return nil
		}

		rec := model.Redemption{
			RewardID:   reward.ID,
			Cost:       reward.Cost,
			RedeemedAt: l.now().UTC(),
			Code:       uuid.NewString(),
		}
		if err := l.saveRedemptions(ctx, user, append(redemptions, rec)); err != nil {
			return err
		}

		result.Status = RedeemOK
		result.Redemption = rec
		result.Balance = balance - reward.Cost
		return nil
	})
	if err != nil {
		return RedeemResult{}, fmt.Errorf("failed to redeem reward: %w", err)
	}

	l.metrics.RecordRedemption(result.Status.String())
	if result.Status != RedeemOK {
		log.Debug().
			Str("user_key", user.String()).
			Int("reward_id", reward.ID).
			Str("status", result.Status.String()).
			Int64("shortfall", result.Shortfall).
			Msg("Redemption refused")
		return result, nil
	}

	l.metrics.RecordPointsSpent(reward.Cost)
	log.Info().
		Str("user_key", user.String()).
		Int("reward_id", reward.ID).
		Int64("cost", reward.Cost).
		Int64("balance", result.Balance).
		Msg("Reward redeemed")

	l.notifier.PublishPointsChanged(user, result.Balance)

	return result, nil
}
