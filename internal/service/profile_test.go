package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emirates-passport/internal/model"
)

func TestProfile_SaveAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.ledger.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	res, err := f.ledger.SaveProfile(ctx, alice, model.Profile{
		FullName: "  Alice Traveller ",
		Email:    "alice@example.com",
		Hometown: "Al Ain",
	})
	require.NoError(t, err)
	assert.False(t, res.Sandboxed)
	assert.Equal(t, "Alice Traveller", res.Profile.FullName)
	assert.Equal(t, 1, f.store.setCount())

	p, err = f.ledger.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, res.Profile, p)

	raw, err := f.store.MemoryStore.Get(ctx, alice.StorageKey(model.RecordUserProfile))
	require.NoError(t, err)
	assert.Contains(t, raw, `"favoriteEmiratesPlace"`)
	assert.Contains(t, raw, `"fullName":"Alice Traveller"`)

	// Profile writes are not ledger changes.
	assert.Empty(t, f.events.Topics())
}

func TestProfile_UpdateKeepsOtherFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.SaveProfile(ctx, alice, model.Profile{FullName: "Alice", Bio: "Likes deserts"})
	require.NoError(t, err)

	res, err := f.ledger.UpdateProfile(ctx, alice, func(p *model.Profile) {
		p.Hometown = "Dubai"
	})
	require.NoError(t, err)
	assert.Equal(t, model.Profile{FullName: "Alice", Bio: "Likes deserts", Hometown: "Dubai"}, res.Profile)
}

func TestProfile_ConcurrentUpdatesAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	edits := []func(*model.Profile){
		func(p *model.Profile) { p.FullName = "Alice" },
		func(p *model.Profile) { p.Bio = "Explorer" },
		func(p *model.Profile) { p.Hometown = "Ajman" },
		func(p *model.Profile) { p.FavoriteEmiratesPlace = "Jebel Jais" },
	}

	var wg sync.WaitGroup
	for _, edit := range edits {
		wg.Add(1)
		go func(edit func(*model.Profile)) {
			defer wg.Done()
			_, err := f.ledger.UpdateProfile(ctx, alice, edit)
			assert.NoError(t, err)
		}(edit)
	}
	wg.Wait()

	p, err := f.ledger.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, model.Profile{
		FullName:              "Alice",
		Bio:                   "Explorer",
		Hometown:              "Ajman",
		FavoriteEmiratesPlace: "Jebel Jais",
	}, p)
}

func TestProfile_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invalid := []model.Profile{
		{Email: "not-an-email"},
		{FullName: strings.Repeat("a", 101)},
		{Bio: strings.Repeat("b", 501)},
	}
	for _, p := range invalid {
		_, err := f.ledger.SaveProfile(ctx, alice, p)
		assert.ErrorIs(t, err, ErrInvalidProfile)
	}
	assert.Zero(t, f.store.setCount())

	// An empty email is allowed.
	_, err := f.ledger.SaveProfile(ctx, alice, model.Profile{FullName: "Alice"})
	assert.NoError(t, err)
}

func TestProfile_DemoUserIsSandboxed(t *testing.T) {
	f := newFixture(t, WithDemoUser("demo"))
	ctx := context.Background()
	demo := model.UserKey("demo")

	res, err := f.ledger.SaveProfile(ctx, demo, model.Profile{FullName: "Guest"})
	require.NoError(t, err)
	assert.True(t, res.Sandboxed)
	assert.Equal(t, "Guest", res.Profile.FullName)
	assert.Zero(t, f.store.setCount())

	f.seed(t, demo, model.RecordUserProfile, `{"fullName":"Leaked"}`)
	p, err := f.ledger.GetProfile(ctx, demo)
	require.NoError(t, err)
	assert.True(t, p.IsZero())
}

func TestProfile_CorruptAndUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, alice, model.RecordUserProfile, `["not","a","profile"]`)
	p, err := f.ledger.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.True(t, p.IsZero())
	assert.Positive(t, f.recorder.get("corrupt:userProfile"))

	f.store.failGets(errUnavailable)
	_, err = f.ledger.GetProfile(ctx, alice)
	assert.ErrorIs(t, err, errUnavailable)

	_, err = f.ledger.SaveProfile(ctx, alice, model.Profile{FullName: "Alice"})
	assert.ErrorIs(t, err, errUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidProfile)
}
