// Package service implements the passport ledger: stamp collection, derived
// points balances, reward redemption and the scan flow.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"emirates-passport/internal/catalog"
	"emirates-passport/internal/location"
	"emirates-passport/internal/metrics"
	"emirates-passport/internal/model"
	"emirates-passport/internal/notify"
	"emirates-passport/internal/pkg/lock"
	"emirates-passport/internal/repository"
)

// DefaultDemoUserKey is the sandboxed identity used when none is configured.
const DefaultDemoUserKey model.UserKey = "demo"

// Ledger errors.
var (
	ErrInvalidLocation = errors.New("invalid location")
)

// StampResult is the outcome of RecordStamp.
type StampResult struct {
	// Created is true only when a new stamp was persisted.
	Created bool
	// Sandboxed is true when the identity is the demo user and nothing was stored.
	Sandboxed bool
	// Stamp is the new stamp, or the previously collected one when Created is false.
	Stamp model.Stamp
	// Balance is the points balance after the operation. Zero when sandboxed.
	Balance int64
}

// EmirateProgress is one page of the passport.
type EmirateProgress struct {
	Emirate   model.Emirate
	Stamps    []model.Stamp
	Collected int
}

// Summary holds the derived figures of a user's passport.
type Summary struct {
	UserKey    model.UserKey
	Emirates   []EmirateProgress
	Collected  int
	TotalSlots int
	// Completion is the rounded percentage of stamp slots filled.
	Completion int
	Balance    int64
	Redeemed   []int
}

// LedgerService owns the per-user stamp and redemption history.
// Balances are always derived from that history and never stored.
// Mutations are serialised by an in-process lock, so one process should own
// a given store.
type LedgerService struct {
	store       repository.Store
	registry    *location.Registry
	notifier    *notify.Notifier
	locks       *lock.UserLock
	metrics     metrics.Recorder
	demoUser    model.UserKey
	lockTimeout time.Duration
	now         func() time.Time
}

// LedgerOption configures a LedgerService.
type LedgerOption func(*LedgerService)

// WithRegistry sets the registry used to back-fill point values of stamps
// stored without them. Defaults to location.Default().
func WithRegistry(r *location.Registry) LedgerOption {
	return func(s *LedgerService) {
		s.registry = r
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) LedgerOption {
	return func(s *LedgerService) {
		s.metrics = m
	}
}

// WithDemoUser sets the sandboxed identity.
func WithDemoUser(user model.UserKey) LedgerOption {
	return func(s *LedgerService) {
		s.demoUser = user
	}
}

// WithLockTimeout bounds how long a mutation waits for the user's lock.
// Zero waits as long as the context allows.
func WithLockTimeout(d time.Duration) LedgerOption {
	return func(s *LedgerService) {
		s.lockTimeout = d
	}
}

// WithClock overrides the time source for stamp and redemption timestamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) {
		s.now = now
	}
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(store repository.Store, notifier *notify.Notifier, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:    store,
		notifier: notifier,
		locks:    lock.NewUserLock(),
		metrics:  metrics.Nop{},
		demoUser: DefaultDemoUserKey,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.registry == nil {
		s.registry = location.Default()
	}
	if s.notifier == nil {
		s.notifier = notify.New()
	}
	return s
}

// Notifier returns the change notifier the ledger publishes to.
func (s *LedgerService) Notifier() *notify.Notifier {
	return s.notifier
}

// IsDemo reports whether user is the sandboxed demo identity.
func (s *LedgerService) IsDemo(user model.UserKey) bool {
	return user == s.demoUser
}

// RecordStamp records that user collected a stamp at info.
// Recording is idempotent per (emirate, location): a repeat returns the
// existing stamp with Created=false and changes nothing. A new stamp is
// persisted with a single write, after which stamps-changed and then
// points-changed are published.
func (s *LedgerService) RecordStamp(ctx context.Context, user model.UserKey, info model.LocationInfo) (StampResult, error) {
	if info.EmirateID == "" || info.PointValue < 0 {
		return StampResult{}, ErrInvalidLocation
	}

	if s.IsDemo(user) {
		log.Debug().
			Str("user_key", user.String()).
			Int("location_id", info.ID).
			Msg("Demo user scan, not recording")
		return StampResult{Sandboxed: true, Stamp: s.newStamp(info)}, nil
	}

	var (
		result StampResult
		book   model.StampBook
	)
	err := s.locks.WithLockContext(ctx, user, s.lockTimeout, func() error {
		var err error
		book, err = s.loadStamps(ctx, user)
		if err != nil {
			return err
		}
		redemptions, err := s.loadRedemptions(ctx, user)
		if err != nil {
			return err
		}

		if existing, ok := book.Find(info.EmirateID, info.ID); ok {
			result = StampResult{Stamp: existing, Balance: model.Balance(book, redemptions)}
			return nil
		}

		stamp := s.newStamp(info)
		book[info.EmirateID] = append(book[info.EmirateID], stamp)
		if err := s.saveStamps(ctx, user, book); err != nil {
			return err
		}

		result = StampResult{Created: true, Stamp: stamp, Balance: model.Balance(book, redemptions)}
		return nil
	})
	if err != nil {
		return StampResult{}, fmt.Errorf("failed to record stamp: %w", err)
	}

	if !result.Created {
		log.Debug().
			Str("user_key", user.String()).
			Str("emirate_id", info.EmirateID).
			Int("location_id", info.ID).
			Msg("Stamp already collected")
		return result, nil
	}

	s.metrics.RecordPointsCredited(result.Stamp.PointValue)
	log.Info().
		Str("user_key", user.String()).
		Str("emirate_id", info.EmirateID).
		Int("location_id", info.ID).
		Int64("points", result.Stamp.PointValue).
		Int64("balance", result.Balance).
		Msg("Stamp collected")

	s.notifier.PublishStampsChanged(user, book)
	s.notifier.PublishPointsChanged(user, result.Balance)

	return result, nil
}

func (s *LedgerService) newStamp(info model.LocationInfo) model.Stamp {
	return model.Stamp{
		LocationID:   info.ID,
		LocationName: info.Name,
		CollectedAt:  s.now().UTC(),
		EmirateID:    info.EmirateID,
		PointValue:   info.PointValue,
	}
}

// GetStamps returns the user's stamps grouped by emirate.
// Missing or corrupt data yields an empty book.
func (s *LedgerService) GetStamps(ctx context.Context, user model.UserKey) (model.StampBook, error) {
	if s.IsDemo(user) {
		return model.StampBook{}, nil
	}
	book, err := s.loadStamps(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get stamps: %w", err)
	}
	return book, nil
}

// GetBalance returns the user's derived points balance.
func (s *LedgerService) GetBalance(ctx context.Context, user model.UserKey) (int64, error) {
	if s.IsDemo(user) {
		return 0, nil
	}
	book, redemptions, err := s.history(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return model.Balance(book, redemptions), nil
}

// GetRedemptions returns the user's redemption history in claim order.
func (s *LedgerService) GetRedemptions(ctx context.Context, user model.UserKey) (model.Redemptions, error) {
	if s.IsDemo(user) {
		return model.Redemptions{}, nil
	}
	redemptions, err := s.loadRedemptions(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get redemptions: %w", err)
	}
	return redemptions, nil
}

// Summary returns per-emirate progress, completion and balance for user.
func (s *LedgerService) Summary(ctx context.Context, user model.UserKey) (*Summary, error) {
	book := model.StampBook{}
	redemptions := model.Redemptions{}
	if !s.IsDemo(user) {
		var err error
		book, redemptions, err = s.history(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("failed to get summary: %w", err)
		}
	}

	sum := &Summary{
		UserKey:    user,
		Emirates:   make([]EmirateProgress, 0, len(catalog.Emirates)),
		Collected:  book.Total(),
		TotalSlots: catalog.TotalStampSlots(),
		Balance:    model.Balance(book, redemptions),
		Redeemed:   redemptions.RewardIDs(),
	}
	for _, e := range catalog.Emirates {
		stamps := book[e.ID]
		sum.Emirates = append(sum.Emirates, EmirateProgress{
			Emirate:   e,
			Stamps:    append([]model.Stamp(nil), stamps...),
			Collected: len(stamps),
		})
	}
	sum.Completion = completion(sum.Collected, sum.TotalSlots)

	return sum, nil
}

func (s *LedgerService) history(ctx context.Context, user model.UserKey) (model.StampBook, model.Redemptions, error) {
	book, err := s.loadStamps(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	redemptions, err := s.loadRedemptions(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return book, redemptions, nil
}

// completion returns collected/total as a rounded percentage.
func completion(collected, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(collected) / float64(total) * 100))
}
