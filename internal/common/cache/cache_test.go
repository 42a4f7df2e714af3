package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-enricher/internal/common/errors"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()

	_, found := c.Get(ctx, "events:list:1")
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "events:list:1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "events:search:metro", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "transit:40.41,-3.70", []byte("Sol"), time.Minute))

	val, found := c.Get(ctx, "events:list:1")
	require.True(t, found)
	assert.Equal(t, []byte("a"), val)

	removed, err := c.ClearByPattern(ctx, EventsPrefix)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found = c.Get(ctx, "events:list:1")
	assert.False(t, found)
	_, found = c.Get(ctx, "events:search:metro")
	assert.False(t, found)

	val, found = c.Get(ctx, "transit:40.41,-3.70")
	require.True(t, found)
	assert.Equal(t, "Sol", string(val))

	require.NoError(t, c.Delete(ctx, "transit:40.41,-3.70"))
	_, found = c.Get(ctx, "transit:40.41,-3.70")
	assert.False(t, found)
}

func TestLocalCache(t *testing.T) {
	exerciseCache(t, NewLocalCache(time.Minute, time.Minute))
}

func TestRedisCache(t *testing.T) {
	_, client := setupTestRedis(t)
	exerciseCache(t, NewRedisCache(client, "enricher:"))
}

func TestTwoTierCache(t *testing.T) {
	_, client := setupTestRedis(t)
	exerciseCache(t, NewTwoTierCache(time.Minute, time.Minute, client, "enricher:"))
}

func TestRedisCache_PrefixIsolation(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:events:x", "keep"))
	c := NewRedisCache(client, "enricher:")
	require.NoError(t, c.Set(ctx, "events:x", []byte("drop"), time.Minute))

	removed, err := c.ClearByPattern(ctx, EventsPrefix)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, mr.Exists("other:events:x"))
}

func TestTwoTierCache_PopulatesL1(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	c := NewTwoTierCache(time.Minute, time.Minute, client, "p:")
	require.NoError(t, mr.Set("p:image:https://example.org/a", "https://example.org/a.jpg"))

	val, found := c.Get(ctx, "image:https://example.org/a")
	require.True(t, found)
	assert.Equal(t, "https://example.org/a.jpg", string(val))

	mr.FlushAll()
	val, found = c.Get(ctx, "image:https://example.org/a")
	require.True(t, found, "served from L1 after L2 flush")
	assert.Equal(t, "https://example.org/a.jpg", string(val))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Minute, time.Minute)

	type payload struct {
		Station string   `json:"station"`
		Lines   []string `json:"lines"`
	}
	require.NoError(t, SetJSON(ctx, c, "transit:k", payload{Station: "Sol", Lines: []string{"1", "2"}}, time.Minute))

	var got payload
	require.True(t, GetJSON(ctx, c, "transit:k", &got))
	assert.Equal(t, "Sol", got.Station)
	assert.Equal(t, []string{"1", "2"}, got.Lines)

	require.NoError(t, c.Set(ctx, "broken", []byte("{"), time.Minute))
	assert.False(t, GetJSON(ctx, c, "broken", &got))
	assert.False(t, GetJSON(ctx, c, "missing", &got))
}

func TestNew(t *testing.T) {
	_, client := setupTestRedis(t)

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"local", Config{Type: TypeLocal, TTL: time.Minute}, false},
		{"default type", Config{TTL: time.Minute}, false},
		{"redis", Config{Type: TypeRedis, RedisClient: client}, false},
		{"redis without client", Config{Type: TypeRedis}, true},
		{"two tier", Config{Type: TypeTwoTier, TTL: time.Minute, RedisClient: client}, false},
		{"two tier without client", Config{Type: TypeTwoTier}, true},
		{"unknown", Config{Type: "memcached"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestConfigResolve(t *testing.T) {
	_, client := setupTestRedis(t)

	assert.Equal(t, TypeLocal, Config{}.Resolve())
	assert.Equal(t, TypeLocal, Config{Type: TypeTwoTier}.Resolve())
	assert.Equal(t, TypeLocal, Config{Type: TypeRedis}.Resolve())
	assert.Equal(t, TypeTwoTier, Config{Type: TypeTwoTier, RedisClient: client}.Resolve())
	assert.Equal(t, Type("memcached"), Config{Type: "memcached"}.Resolve())

	_, err := New(Config{Type: TypeRedis})
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
}
