package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Entry is one cached model output keyed by a prompt signature.
type Entry struct {
	Value         json.RawMessage
	ModelID       string
	PromptVersion string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// SemanticCache keeps recent generation outputs in memory so a report rerun
// with identical inputs does not pay for a second model call. Eviction is
// insertion-ordered: when the cache is full the oldest signature goes first.
type SemanticCache struct {
	mu      sync.Mutex
	entries map[string]Entry
	order   []string
	ttl     time.Duration
	max     int
}

func NewSemanticCache(config Config) *SemanticCache {
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 2000
	}
	return &SemanticCache{
		entries: make(map[string]Entry),
		ttl:     config.TTL,
		max:     config.MaxEntries,
	}
}

func (c *SemanticCache) Get(signature string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[signature]
	if !ok {
		return Entry{}, false
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		c.remove(signature)
		return Entry{}, false
	}
	entry.Value = append(json.RawMessage(nil), entry.Value...)
	return entry, true
}

func (c *SemanticCache) Set(signature string, entry Entry) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.ttl)
	entry.Value = append(json.RawMessage(nil), entry.Value...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[signature]; exists {
		c.entries[signature] = entry
		return
	}
	for len(c.entries) >= c.max && len(c.order) > 0 {
		c.remove(c.order[0])
	}
	c.entries[signature] = entry
	c.order = append(c.order, signature)
}

// BuildSignature hashes the lowercased, trimmed parts into a stable key.
func (c *SemanticCache) BuildSignature(parts ...string) string {
	var joined strings.Builder
	for i, part := range parts {
		if i > 0 {
			joined.WriteString("||")
		}
		joined.WriteString(strings.TrimSpace(strings.ToLower(part)))
	}
	sum := sha256.Sum256([]byte(joined.String()))
	return hex.EncodeToString(sum[:])
}

// remove expects c.mu to be held.
func (c *SemanticCache) remove(signature string) {
	delete(c.entries, signature)
	for i, key := range c.order {
		if key == signature {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
