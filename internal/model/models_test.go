package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserKey(t *testing.T) {
	valid := []string{"alice@example.com", "tg:123456", "Demo User", "demo"}
	for _, raw := range valid {
		k, err := ParseUserKey(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, k.String())
	}

	invalid := []string{"", " alice", "bob ", "a\nb", "x\x00y", strings.Repeat("k", 129)}
	for _, raw := range invalid {
		_, err := ParseUserKey(raw)
		assert.ErrorIs(t, err, ErrInvalidUserKey, "%q", raw)
	}
}

func TestUserKey_StorageKey(t *testing.T) {
	k := UserKey("alice@example.com")
	assert.Equal(t, "alice@example.com_collectedStamps", k.StorageKey(RecordCollectedStamps))
	assert.Equal(t, "alice@example.com_redeemedRewards", k.StorageKey(RecordRedeemedRewards))
}

func TestBalance(t *testing.T) {
	now := time.Now()
	stamps := StampBook{
		"dubai":     {{LocationID: 2, EmirateID: "dubai", PointValue: 50, CollectedAt: now}},
		"abu-dhabi": {{LocationID: 1, EmirateID: "abu-dhabi", PointValue: 30, CollectedAt: now}},
	}
	redemptions := Redemptions{{RewardID: 1, Cost: 50, RedeemedAt: now}}

	assert.Equal(t, 2, stamps.Total())
	assert.Equal(t, int64(80), stamps.Points())
	assert.Equal(t, int64(30), Balance(stamps, redemptions))
	assert.True(t, redemptions.Has(1))
	assert.False(t, redemptions.Has(2))
	assert.Equal(t, []int{1}, redemptions.RewardIDs())

	// Corrupt history never yields a negative balance.
	assert.Equal(t, int64(0), Balance(StampBook{}, redemptions))
}

func TestStampBook_FindAndClone(t *testing.T) {
	book := StampBook{"dubai": {{LocationID: 2, EmirateID: "dubai", LocationName: "Dubai Mall"}}}

	s, ok := book.Find("dubai", 2)
	require.True(t, ok)
	assert.Equal(t, "Dubai Mall", s.LocationName)

	_, ok = book.Find("dubai", 3)
	assert.False(t, ok)

	clone := book.Clone()
	clone["dubai"][0].LocationName = "changed"
	clone["sharjah"] = nil
	assert.Equal(t, "Dubai Mall", book["dubai"][0].LocationName)
	assert.NotContains(t, book, "sharjah")
}

func TestProfile_TrimmedAndIsZero(t *testing.T) {
	assert.True(t, Profile{}.IsZero())
	assert.True(t, Profile{FullName: "  ", Bio: "\n"}.Trimmed().IsZero())

	p := Profile{FullName: " Mariam ", Hometown: "Al Ain\t"}.Trimmed()
	assert.Equal(t, "Mariam", p.FullName)
	assert.Equal(t, "Al Ain", p.Hometown)
	assert.False(t, p.IsZero())

	assert.Equal(t, "alice_userProfile", UserKey("alice").StorageKey(RecordUserProfile))
}
