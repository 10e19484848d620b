package cache

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSemanticCacheRoundTrip(t *testing.T) {
	c := NewSemanticCache(Config{TTL: time.Minute, MaxEntries: 4})
	signature := c.BuildSignature("keywords", "product-1", "v1")

	if _, ok := c.Get(signature); ok {
		t.Fatalf("empty cache must miss")
	}

	c.Set(signature, Entry{Value: json.RawMessage(`{"seo":["a"]}`), PromptVersion: "v1"})
	entry, ok := c.Get(signature)
	if !ok {
		t.Fatalf("expected a hit after Set")
	}
	if string(entry.Value) != `{"seo":["a"]}` || entry.PromptVersion != "v1" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestSemanticCacheSignatureNormalizesParts(t *testing.T) {
	c := NewSemanticCache(Config{})
	if c.BuildSignature("Keywords", " Product-1 ") != c.BuildSignature("keywords", "product-1") {
		t.Fatalf("expected case and whitespace to be ignored")
	}
	if c.BuildSignature("a", "b") == c.BuildSignature("a", "c") {
		t.Fatalf("distinct parts must produce distinct signatures")
	}
}

func TestSemanticCacheEvictsOldestWhenFull(t *testing.T) {
	c := NewSemanticCache(Config{TTL: time.Minute, MaxEntries: 2})

	c.Set("first", Entry{Value: json.RawMessage(`1`)})
	c.Set("second", Entry{Value: json.RawMessage(`2`)})
	c.Set("third", Entry{Value: json.RawMessage(`3`)})

	if _, ok := c.Get("first"); ok {
		t.Fatalf("expected the oldest entry evicted")
	}
	if _, ok := c.Get("second"); !ok {
		t.Fatalf("expected the newer entries kept")
	}
	if _, ok := c.Get("third"); !ok {
		t.Fatalf("expected the newest entry kept")
	}
}

func TestSemanticCacheHonorsTTL(t *testing.T) {
	c := NewSemanticCache(Config{TTL: time.Millisecond, MaxEntries: 4})
	c.Set("sig", Entry{Value: json.RawMessage(`1`)})
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("sig"); ok {
		t.Fatalf("expected the entry to expire")
	}
}
