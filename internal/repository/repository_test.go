package repository

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"emirates-passport/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// setupPostgres starts a PostgreSQL container with the ledger schema applied.
// Skips the test if Docker is not available.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("passport"),
		postgres.WithUsername("passport"),
		postgres.WithPassword("passport"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	// Migrating twice must be harmless.
	require.NoError(t, db.Migrate(ctx, pool))

	return pool
}

// setupRedis starts a Redis container and returns a connected client.
// Skips the test if Docker is not available.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	return client
}

// testStoreContract runs the behaviour every Store adapter must share.
func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "nobody_collectedStamps")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := store.Get(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyKey)
		assert.ErrorIs(t, store.Set(ctx, "", "x"), ErrEmptyKey)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "alice_collectedStamps", `{"dubai":[]}`))

		v, err := store.Get(ctx, "alice_collectedStamps")
		require.NoError(t, err)
		assert.Equal(t, `{"dubai":[]}`, v)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "bob_redeemedRewards", `[]`))
		require.NoError(t, store.Set(ctx, "bob_redeemedRewards", `[{"rewardId":1}]`))

		v, err := store.Get(ctx, "bob_redeemedRewards")
		require.NoError(t, err)
		assert.Equal(t, `[{"rewardId":1}]`, v)
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "carol_collectedStamps", "a"))
		require.NoError(t, store.Set(ctx, "carol_redeemedRewards", "b"))

		v, err := store.Get(ctx, "carol_collectedStamps")
		require.NoError(t, err)
		assert.Equal(t, "a", v)

		_, err = store.Get(ctx, "dave_collectedStamps")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("empty value is stored", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "erin_collectedStamps", ""))
		v, err := store.Get(ctx, "erin_collectedStamps")
		require.NoError(t, err)
		assert.Equal(t, "", v)
	})

	t.Run("concurrent writers to distinct keys", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("user-%d_collectedStamps", i)
				assert.NoError(t, store.Set(ctx, key, fmt.Sprint(i)))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 20; i++ {
			v, err := store.Get(ctx, fmt.Sprintf("user-%d_collectedStamps", i))
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprint(i), v)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_SnapshotIsACopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "alice_collectedStamps", "{}"))

	snap := store.Snapshot()
	snap["alice_collectedStamps"] = "changed"
	snap["mallory_collectedStamps"] = "{}"

	v, err := store.Get(ctx, "alice_collectedStamps")
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
	assert.Equal(t, 1, store.Len())
}

func TestPostgresStore(t *testing.T) {
	pool := setupPostgres(t)
	store := NewPostgresStore(pool)

	testStoreContract(t, store)

	ok, err := store.Exists(context.Background(), "alice_collectedStamps")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(context.Background(), "zed_collectedStamps")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStore_UnavailableIsNotNotFound(t *testing.T) {
	pool := setupPostgres(t)
	store := NewPostgresStore(pool)
	pool.Close()

	_, err := store.Get(context.Background(), "alice_collectedStamps")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisStore(t *testing.T) {
	client := setupRedis(t)
	testStoreContract(t, NewRedisStore(client))
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	store := NewRedisStore(client, WithKeyPrefix("test:"))
	require.NoError(t, store.Set(ctx, "alice_collectedStamps", "{}"))

	raw, err := client.Get(ctx, "test:alice_collectedStamps").Result()
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)

	ttl, err := client.TTL(ctx, "test:alice_collectedStamps").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl, "ledger keys must not expire")

	other := NewRedisStore(client)
	_, err = other.Get(ctx, "alice_collectedStamps")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
