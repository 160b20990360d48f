package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/community-gateway/internal/core/cache"
	rediscache "github.com/unifiedui/community-gateway/internal/infrastructure/cache/redis"
)

func setupMiniredis(t *testing.T, prefix string) (*miniredis.Miniredis, cache.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rediscache.NewClient(rediscache.Config{
		Host:       mr.Host(),
		Port:       mr.Port(),
		DefaultTTL: time.Minute,
		KeyPrefix:  prefix,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return mr, client
}

func TestNewClient_ConnectionRefused(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	client, err := rediscache.NewClient(rediscache.Config{Host: host, Port: port})
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestClient_SetAndGet(t *testing.T) {
	mr, client := setupMiniredis(t, "cg:")
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "post:hello", []byte("value"), time.Minute))

	result, err := client.Get(ctx, "post:hello")
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), result)

	// Keys are namespaced by the prefix.
	assert.True(t, mr.Exists("cg:post:hello"))
}

func TestClient_GetNotFound(t *testing.T) {
	_, client := setupMiniredis(t, "")

	result, err := client.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestClient_DefaultTTL(t *testing.T) {
	mr, client := setupMiniredis(t, "")
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), 0))
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestClient_Delete(t *testing.T) {
	_, client := setupMiniredis(t, "cg:")
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), time.Minute))

	deleted, err := client.Delete(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = client.Delete(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestClient_DeletePattern(t *testing.T) {
	mr, client := setupMiniredis(t, "cg:")
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "posts:list:10:0", []byte("a"), time.Minute))
	require.NoError(t, client.Set(ctx, "posts:list:10:10", []byte("b"), time.Minute))
	require.NoError(t, client.Set(ctx, "post:hello", []byte("c"), time.Minute))

	deleted, err := client.DeletePattern(ctx, "posts:list:*")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, []string{"cg:post:hello"}, mr.Keys())
}

func TestClient_TTLExpiration(t *testing.T) {
	mr, client := setupMiniredis(t, "")
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "expiring", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	result, err := client.Get(ctx, "expiring")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestJSONHelpers(t *testing.T) {
	_, client := setupMiniredis(t, "")
	ctx := context.Background()

	type payload struct {
		Slug string `json:"slug"`
	}

	require.NoError(t, cache.SetJSON(ctx, client, "json", payload{Slug: "hello"}, time.Minute))

	var out payload
	found, err := cache.GetJSON(ctx, client, "json", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", out.Slug)

	// Corrupt values are evicted and reported as a miss.
	require.NoError(t, client.Set(ctx, "json", []byte("{not json"), time.Minute))
	found, err = cache.GetJSON(ctx, client, "json", &out)
	require.NoError(t, err)
	assert.False(t, found)

	raw, err := client.Get(ctx, "json")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestClient_Ping(t *testing.T) {
	_, client := setupMiniredis(t, "")
	assert.NoError(t, client.Ping(context.Background()))
}
