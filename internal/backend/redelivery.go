// ABOUTME: TTL and size bounded record of request payloads the backend has already seen
// ABOUTME: A repeat within the window means the client retried an identical body

package backend

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/2389/portfolio-chat/internal/clock"
)

type seenEntry struct {
	key       string
	timestamp time.Time
}

// Redeliveries remembers payload digests for ttl, holding at most maxSize
// of them. Entries are kept in last-seen order (oldest at front), so expiry
// and eviction both pop from the front.
type Redeliveries struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	clock   clock.Clock
}

// NewRedeliveries creates a tracker. A nil clock uses the real one.
func NewRedeliveries(ttl time.Duration, maxSize int, c clock.Clock) *Redeliveries {
	if c == nil {
		c = clock.New()
	}
	return &Redeliveries{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		clock:   c,
	}
}

// PayloadKey returns the digest used to recognise an identical body.
func PayloadKey(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// CheckAndMark reports whether key was seen within the TTL and records it
// as seen now either way.
func (r *Redeliveries) CheckAndMark(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.expireLocked(now)

	if elem, ok := r.seen[key]; ok {
		elem.Value.(*seenEntry).timestamp = now
		r.order.MoveToBack(elem)
		return true
	}

	if r.maxSize > 0 && len(r.seen) >= r.maxSize {
		r.removeLocked(r.order.Front())
	}
	r.seen[key] = r.order.PushBack(&seenEntry{key: key, timestamp: now})
	return false
}

// Len returns the number of tracked payloads.
func (r *Redeliveries) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// expireLocked drops entries older than the TTL. Must be called with mu held.
func (r *Redeliveries) expireLocked(now time.Time) {
	for front := r.order.Front(); front != nil; front = r.order.Front() {
		if now.Sub(front.Value.(*seenEntry).timestamp) < r.ttl {
			return
		}
		r.removeLocked(front)
	}
}

func (r *Redeliveries) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := r.order.Remove(elem).(*seenEntry)
	delete(r.seen, entry.key)
}
