package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"emirates-passport/internal/model"
)

// ErrInvalidProfile is returned when a profile fails field validation.
var ErrInvalidProfile = errors.New("invalid profile")

var profileValidator = validator.New()

// ProfileResult is the outcome of a profile update.
type ProfileResult struct {
	Profile model.Profile
	// Sandboxed is true when the identity is the demo user and nothing was stored.
	Sandboxed bool
}

// GetProfile returns the user's profile. Missing or corrupt data yields an
// empty profile; the demo identity always reads empty.
func (s *LedgerService) GetProfile(ctx context.Context, user model.UserKey) (model.Profile, error) {
	if s.IsDemo(user) {
		return model.Profile{}, nil
	}
	p, err := s.loadProfile(ctx, user)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// SaveProfile replaces the user's profile.
func (s *LedgerService) SaveProfile(ctx context.Context, user model.UserKey, p model.Profile) (ProfileResult, error) {
	return s.UpdateProfile(ctx, user, func(current *model.Profile) {
		*current = p
	})
}

// UpdateProfile applies edit to the stored profile and writes the result
// with a single write under the user's lock. Fields are trimmed and
// validated before anything is stored. For the demo identity the edit is
// applied to an empty profile and returned without being saved.
func (s *LedgerService) UpdateProfile(ctx context.Context, user model.UserKey, edit func(*model.Profile)) (ProfileResult, error) {
	if s.IsDemo(user) {
		var p model.Profile
		edit(&p)
		p = p.Trimmed()
		if err := validateProfile(p); err != nil {
			return ProfileResult{}, err
		}
		log.Debug().
			Str("user_key", user.String()).
			Msg("Demo user profile edit, not saving")
		return ProfileResult{Profile: p, Sandboxed: true}, nil
	}

	var result ProfileResult
	err := s.locks.WithLockContext(ctx, user, s.lockTimeout, func() error {
		p, err := s.loadProfile(ctx, user)
		if err != nil {
			return err
		}
		edit(&p)
		p = p.Trimmed()
		if err := validateProfile(p); err != nil {
			return err
		}
		if err := s.writeRecord(ctx, user, model.RecordUserProfile, p); err != nil {
			return err
		}
		result = ProfileResult{Profile: p}
		return nil
	})
	if errors.Is(err, ErrInvalidProfile) {
		return ProfileResult{}, err
	}
	if err != nil {
		return ProfileResult{}, fmt.Errorf("failed to save profile: %w", err)
	}

	log.Info().
		Str("user_key", user.String()).
		Msg("Profile updated")
	return result, nil
}

func (s *LedgerService) loadProfile(ctx context.Context, user model.UserKey) (model.Profile, error) {
	raw, err := s.readRecord(ctx, user, model.RecordUserProfile)
	if err != nil {
		return model.Profile{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return model.Profile{}, nil
	}

	var p model.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.corrupt(user, model.RecordUserProfile, err)
		return model.Profile{}, nil
	}
	return p, nil
}

func validateProfile(p model.Profile) error {
	if err := profileValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}
