// Package psk defines the pre-shared key cache contract the driver
// consults when initiating or storing 0-RTT-capable sessions, plus a
// default bounded, TTL-aware in-memory implementation. The cache's
// internal storage strategy is an external collaborator concern; this
// package only fixes the interface the core relies on and ships one
// reasonable default, the way the teacher ships PSKMapCache.
package psk

import (
	"time"

	"github.com/NulledExceptions/tls13d/wire"
	gocache "github.com/patrickmn/go-cache"
)

// Key is a PreSharedKey together with the negotiation parameters it was
// established under.
type Key struct {
	CipherSuite  wire.CipherSuite
	IsResumption bool
	Identity     []byte
	Secret       []byte
	NextProto    string
	ReceivedAt   time.Time
	ExpiresAt    time.Time
	TicketAgeAdd uint32

	// ServerCertIdentity is the identity of the server certificate this
	// ticket was issued under, if any. A 0-RTT attempt started under this
	// key promises to be talking to that same server (spec.md §4.3's
	// promised server_cert); an external, cert-less PSK leaves it empty.
	ServerCertIdentity string
}

// Cache is the contract the driver relies on: look a PSK up by name
// (server name for clients, ticket identity for servers), store a new
// one, remove one after a rejected 0-RTT attempt, and report size.
//
// Remove is not present on the teacher's PreSharedKeyCache interface as
// shown; it is required by the early-data rejection policy (spec.md §4.3:
// "invalidate the PSK entry ... irrespective of policy") and is added
// here, grounded in fizz's FizzClientContext::removePsk.
type Cache interface {
	Get(name string) (Key, bool)
	Put(name string, key Key)
	Remove(name string)
	Size() int
}

// MapCache is the simplest possible Cache, mirroring the teacher's
// PSKMapCache: an unbounded map with no expiry. Useful for tests and for
// callers who manage their own PSK lifetime externally.
type MapCache map[string]Key

func (c MapCache) Get(name string) (Key, bool) {
	k, ok := c[name]
	return k, ok
}

func (c MapCache) Put(name string, key Key) { c[name] = key }
func (c MapCache) Remove(name string)       { delete(c, name) }
func (c MapCache) Size() int                { return len(c) }

// BoundedCache is the default production Cache: bounded in entry
// lifetime and TTL-aware, backed by github.com/patrickmn/go-cache. There
// is no cap on the number of entries. Entries expire according to
// Key.ExpiresAt (translated into a TTL at Put time); Get hides expired
// entries, and go-cache's janitor goroutine deletes them every
// cleanupInterval (no janitor runs when cleanupInterval is not positive).
type BoundedCache struct {
	c *gocache.Cache
}

// NewBoundedCache returns a Cache with the given default TTL (used when a
// Key carries a zero ExpiresAt) and cleanup interval.
func NewBoundedCache(defaultTTL, cleanupInterval time.Duration) *BoundedCache {
	return &BoundedCache{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (b *BoundedCache) Get(name string) (Key, bool) {
	v, ok := b.c.Get(name)
	if !ok {
		return Key{}, false
	}
	return v.(Key), true
}

func (b *BoundedCache) Put(name string, key Key) {
	ttl := gocache.DefaultExpiration
	if !key.ExpiresAt.IsZero() {
		if d := time.Until(key.ExpiresAt); d > 0 {
			ttl = d
		} else {
			// Already expired: don't bother storing it.
			return
		}
	}
	b.c.Set(name, key, ttl)
}

func (b *BoundedCache) Remove(name string) { b.c.Delete(name) }
func (b *BoundedCache) Size() int          { return b.c.ItemCount() }

var (
	_ Cache = MapCache{}
	_ Cache = (*BoundedCache)(nil)
)
