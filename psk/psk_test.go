package psk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMapCachePutGetRemove(t *testing.T) {
	c := MapCache{}
	c.Put("www.example.com", Key{Secret: []byte("s")})
	got, ok := c.Get("www.example.com")
	require.True(t, ok)
	require.Equal(t, []byte("s"), got.Secret)
	require.Equal(t, 1, c.Size())

	c.Remove("www.example.com")
	_, ok = c.Get("www.example.com")
	require.False(t, ok)
	require.Equal(t, 0, c.Size())
}

func TestBoundedCacheExpiry(t *testing.T) {
	c := NewBoundedCache(time.Hour, time.Hour)
	c.Put("id", Key{Secret: []byte("s"), ExpiresAt: time.Now().Add(-time.Second)})
	_, ok := c.Get("id")
	require.False(t, ok, "already-expired key should not be stored")

	c.Put("id2", Key{Secret: []byte("s2"), ExpiresAt: time.Now().Add(time.Hour)})
	got, ok := c.Get("id2")
	require.True(t, ok)
	require.Equal(t, []byte("s2"), got.Secret)

	c.Remove("id2")
	_, ok = c.Get("id2")
	require.False(t, ok)
}
