package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"emirates-passport/internal/config"
)

// fakeContext carries just enough of an update for the middleware.
type fakeContext struct {
	tele.Context
	chat    *tele.Chat
	sender  *tele.User
	replies []string
}

func (c *fakeContext) Chat() *tele.Chat { return c.chat }
func (c *fakeContext) Sender() *tele.User { return c.sender }
func (c *fakeContext) Text() string { return "/passport" }

func (c *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	c.replies = append(c.replies, what.(string))
	return nil
}

func whitelist(chats ...int64) *config.Config {
	return &config.Config{Whitelist: config.WhitelistConfig{Chats: chats}}
}

// TestWhitelistEnforcementProperty checks that a group chat is served
// if and only if it is on a non-empty whitelist.
func TestWhitelistEnforcementProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chatIDs := rapid.SliceOfNDistinct(rapid.Int64Range(-1000000000, -1), 1, 10, rapid.ID[int64]).Draw(t, "chatIDs")
		cfg := whitelist(chatIDs...)

		testChatID := -rapid.Int64Range(1, 1000000000).Draw(t, "testChatID")

		expected := false
		for _, id := range chatIDs {
			if id == testChatID {
				expected = true
				break
			}
		}

		if got := cfg.IsChatAllowed(testChatID); got != expected {
			t.Fatalf("chatID=%d whitelist=%v: expected %v, got %v", testChatID, chatIDs, expected, got)
		}

		known := rapid.SampledFrom(chatIDs).Draw(t, "known")
		if !cfg.IsChatAllowed(known) {
			t.Fatalf("whitelisted chat %d should be allowed", known)
		}
	})
}

// TestEmptyWhitelistAllowsAllChatsProperty checks that an empty whitelist serves every chat.
func TestEmptyWhitelistAllowsAllChatsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := whitelist()

		chatID := rapid.Int64().Draw(t, "chatID")
		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")
		chatType := rapid.SampledFrom([]tele.ChatType{tele.ChatPrivate, tele.ChatGroup, tele.ChatSuperGroup}).Draw(t, "chatType")

		if !allowed(cfg, &tele.Chat{ID: chatID, Type: chatType}, &tele.User{ID: userID}) {
			t.Fatalf("empty whitelist should serve chat %d (%s)", chatID, chatType)
		}
	})
}

// TestPrivateChatRequiresGroupVisitProperty checks that with a whitelist in
// place, a private chat is served only after the sender used a whitelisted group.
func TestPrivateChatRequiresGroupVisitProperty(t *testing.T) {
	group := int64(-1001)
	cfg := whitelist(group)

	rapid.Check(t, func(t *rapid.T) {
		// IDs in this range are not used by any other test in the package.
		userID := rapid.Int64Range(5000000000, 6000000000).Draw(t, "userID")
		private := &tele.Chat{ID: userID, Type: tele.ChatPrivate}
		sender := &tele.User{ID: userID}

		seen := IsPrivateUserAllowed(userID)
		if allowed(cfg, private, sender) != seen {
			t.Fatalf("private chat for user %d served=%v before group visit", userID, !seen)
		}

		if allowed(cfg, &tele.Chat{ID: -2002, Type: tele.ChatGroup}, sender) {
			t.Fatalf("non-whitelisted group should not be served")
		}

		if !allowed(cfg, &tele.Chat{ID: group, Type: tele.ChatGroup}, sender) {
			t.Fatalf("whitelisted group should be served")
		}
		if !allowed(cfg, private, sender) {
			t.Fatalf("private chat for user %d should be served after group visit", userID)
		}
	})
}

func TestWhitelistMiddleware(t *testing.T) {
	cfg := whitelist(-3003)
	calls := 0
	next := func(tele.Context) error {
		calls++
		return nil
	}
	h := WhitelistMiddleware(cfg)(next)

	require.NoError(t, h(&fakeContext{chat: &tele.Chat{ID: -4004, Type: tele.ChatGroup}, sender: &tele.User{ID: 7000000001}}))
	assert.Equal(t, 0, calls)

	require.NoError(t, h(&fakeContext{chat: &tele.Chat{ID: -3003, Type: tele.ChatGroup}, sender: &tele.User{ID: 7000000001}}))
	assert.Equal(t, 1, calls)

	require.NoError(t, h(&fakeContext{chat: &tele.Chat{ID: 7000000001, Type: tele.ChatPrivate}, sender: &tele.User{ID: 7000000001}}))
	assert.Equal(t, 2, calls)

	// Updates without a sender, such as channel posts, are dropped.
	require.NoError(t, h(&fakeContext{chat: &tele.Chat{ID: -3003, Type: tele.ChatGroup}}))
	assert.Equal(t, 2, calls)
}

func TestRecoveryMiddleware(t *testing.T) {
	c := &fakeContext{chat: &tele.Chat{ID: 1, Type: tele.ChatPrivate}, sender: &tele.User{ID: 1}}

	h := LoggingMiddleware()(RecoveryMiddleware()(func(tele.Context) error {
		panic("boom")
	}))

	assert.NotPanics(t, func() {
		assert.NoError(t, h(c))
	})
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "Something went wrong")
}
