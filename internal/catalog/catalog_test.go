package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAllRewards_DisplayOrder(t *testing.T) {
	rewards := GetAllRewards()
	require.Len(t, rewards, 6)

	for i, r := range rewards {
		assert.Equal(t, i+1, r.ID)
		assert.Positive(t, r.Cost, "reward %d must cost points", r.ID)
	}
}

func TestGetReward(t *testing.T) {
	r, ok := GetReward(3)
	require.True(t, ok)
	assert.Equal(t, "Museum Entry Ticket", r.Name)
	assert.Equal(t, int64(75), r.Cost)

	_, ok = GetReward(99)
	assert.False(t, ok)
}

func TestGetEmirate(t *testing.T) {
	e, ok := GetEmirate(" Dubai ")
	require.True(t, ok)
	assert.Equal(t, EmirateDubai, e.ID)

	_, ok = GetEmirate("qatar")
	assert.False(t, ok)
}

func TestTotalStampSlots(t *testing.T) {
	assert.Equal(t, 35, TotalStampSlots())
}
