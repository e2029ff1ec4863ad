// Package model defines the data models for the passport ledger.
package model

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidUserKey is returned when an identity string cannot scope ledger data.
var ErrInvalidUserKey = errors.New("invalid user key")

// maxUserKeyLen bounds the identity so storage keys stay reasonable.
const maxUserKeyLen = 128

// UserKey is the identity that partitions all ledger data.
// Construct it with ParseUserKey so it is validated once at the boundary.
type UserKey string

// ParseUserKey validates a raw identity string.
// Keys must be non-empty, at most 128 bytes, carry no surrounding whitespace
// and contain no control characters.
func ParseUserKey(raw string) (UserKey, error) {
	if raw == "" || len(raw) > maxUserKeyLen || strings.TrimSpace(raw) != raw {
		return "", ErrInvalidUserKey
	}
	for _, r := range raw {
		if unicode.IsControl(r) {
			return "", ErrInvalidUserKey
		}
	}
	return UserKey(raw), nil
}

// String returns the raw identity.
func (k UserKey) String() string {
	return string(k)
}

// StorageKey returns the persistence key for one of the user's ledger records,
// e.g. "alice@example.com_collectedStamps".
func (k UserKey) StorageKey(record string) string {
	return string(k) + "_" + record
}

// Emirate is static reference data for one emirate and its stamp slots.
type Emirate struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	TotalStampSlots int    `json:"total_stamp_slots"`
}

// Location is a stampable place. IDs are unique within an emirate.
type Location struct {
	ID          int    `json:"id"`
	EmirateID   string `json:"emirate_id"`
	Name        string `json:"name"`
	PointValue  int64  `json:"point_value"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// LocationInfo is what the location registry resolves a scan to.
type LocationInfo = Location

// SameLocation reports whether two locations identify the same place.
func (l Location) SameLocation(emirateID string, locationID int) bool {
	return l.EmirateID == emirateID && l.ID == locationID
}

// Stamp is durable proof that a user visited a location.
type Stamp struct {
	LocationID   int       `json:"locationId"`
	LocationName string    `json:"locationName"`
	CollectedAt  time.Time `json:"collectedAt"`
	EmirateID    string    `json:"emirateId"`
	PointValue   int64     `json:"points"`
}

// StampBook maps emirate IDs to the stamps collected there, in collection order.
type StampBook map[string][]Stamp

// Find returns the stamp for a location if it has been collected.
func (b StampBook) Find(emirateID string, locationID int) (Stamp, bool) {
	for _, s := range b[emirateID] {
		if s.LocationID == locationID {
			return s, true
		}
	}
	return Stamp{}, false
}

// Total returns the number of stamps across all emirates.
func (b StampBook) Total() int {
	n := 0
	for _, stamps := range b {
		n += len(stamps)
	}
	return n
}

// Points returns the sum of point values of every stamp.
func (b StampBook) Points() int64 {
	var sum int64
	for _, stamps := range b {
		for _, s := range stamps {
			sum += s.PointValue
		}
	}
	return sum
}

// Clone returns a deep copy so observers cannot mutate ledger state.
func (b StampBook) Clone() StampBook {
	out := make(StampBook, len(b))
	for id, stamps := range b {
		out[id] = append([]Stamp(nil), stamps...)
	}
	return out
}

// Reward is a catalogue entry that can be exchanged for points once per user.
type Reward struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Cost        int64  `json:"cost"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Redemption records that a reward was claimed.
type Redemption struct {
	RewardID   int       `json:"rewardId"`
	Cost       int64     `json:"cost"`
	RedeemedAt time.Time `json:"redeemedAt"`
	Code       string    `json:"code,omitempty"`
}

// Redemptions is a user's redemption history in claim order.
type Redemptions []Redemption

// Has reports whether a reward has already been redeemed.
func (r Redemptions) Has(rewardID int) bool {
	for _, rec := range r {
		if rec.RewardID == rewardID {
			return true
		}
	}
	return false
}

// Spent returns the total cost of all redemptions.
func (r Redemptions) Spent() int64 {
	var sum int64
	for _, rec := range r {
		sum += rec.Cost
	}
	return sum
}

// RewardIDs returns the redeemed reward IDs in claim order.
func (r Redemptions) RewardIDs() []int {
	ids := make([]int, 0, len(r))
	for _, rec := range r {
		ids = append(ids, rec.RewardID)
	}
	return ids
}

// Balance derives a points balance from stamp and redemption history.
// It never goes below zero.
func Balance(stamps StampBook, redemptions Redemptions) int64 {
	balance := stamps.Points() - redemptions.Spent()
	if balance < 0 {
		return 0
	}
	return balance
}

// Profile is the traveller's self-description shown beside the passport.
type Profile struct {
	FullName              string `json:"fullName" validate:"max=100"`
	Email                 string `json:"email" validate:"omitempty,email,max=254"`
	Bio                   string `json:"bio" validate:"max=500"`
	FavoriteEmiratesPlace string `json:"favoriteEmiratesPlace" validate:"max=100"`
	Hometown              string `json:"hometown" validate:"max=100"`
}

// Trimmed returns the profile with surrounding whitespace removed from every field.
func (p Profile) Trimmed() Profile {
	return Profile{
		FullName:              strings.TrimSpace(p.FullName),
		Email:                 strings.TrimSpace(p.Email),
		Bio:                   strings.TrimSpace(p.Bio),
		FavoriteEmiratesPlace: strings.TrimSpace(p.FavoriteEmiratesPlace),
		Hometown:              strings.TrimSpace(p.Hometown),
	}
}

// IsZero reports whether no field is filled in.
func (p Profile) IsZero() bool {
	return p == Profile{}
}

// Storage record names, combined with a UserKey via StorageKey.
const (
	RecordCollectedStamps = "collectedStamps"
	RecordRedeemedRewards = "redeemedRewards"
	RecordUserProfile     = "userProfile"
)

// NormalizeEmirateID lower-cases an emirate ID for lookups.
func NormalizeEmirateID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
