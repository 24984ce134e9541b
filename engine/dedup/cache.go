// Package dedup implements the webhook deduplication cache (C8): a thin
// policy layer over hashicorp/golang-lru/v2's expirable.LRU, which already
// provides TTL and capacity eviction, so the lazy-probe/overflow-trim
// behavior spec.md §4.8 describes comes for free from the library instead
// of a hand-rolled map+mutex.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry is the value stored per dedup key.
type Entry struct {
	Timestamp  time.Time
	DeliveryID string
}

// Cache is a TTL+capacity-bounded duplicate detector keyed by
// sha256(deliveryID + ":" + payload).
type Cache struct {
	lru      *lru.LRU[string, Entry]
	ttl      time.Duration
	capacity int
}

// New constructs a Cache. capacity defaults to 10000, ttl defaults to 5
// minutes, matching spec.md §6's environment knob defaults.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{lru: lru.NewLRU[string, Entry](capacity, nil, ttl), ttl: ttl, capacity: capacity}
}

// Key computes the dedup key for a (deliveryID, payload) pair.
func Key(deliveryID string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(deliveryID))
	h.Write([]byte(":"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// IsDuplicate reports whether (deliveryID, payload) was already seen within
// the TTL window. If not, it inserts the entry and returns false; the
// lookup-and-insert is the cache's only side effect.
func (c *Cache) IsDuplicate(deliveryID string, payload any) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	key := Key(deliveryID, body)
	if _, ok := c.lru.Get(key); ok {
		return true, nil
	}
	c.lru.Add(key, Entry{Timestamp: time.Now(), DeliveryID: deliveryID})
	return false, nil
}

// Size returns the current number of tracked entries.
func (c *Cache) Size() int { return c.lru.Len() }

// Capacity returns the configured maximum number of entries.
func (c *Cache) Capacity() int { return c.capacity }

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }
