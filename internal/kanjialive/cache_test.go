package kanjialive

import (
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(time.Minute)

	if _, ok := c.Get("kanji/親", ""); ok {
		t.Error("empty cache reported a hit")
	}

	c.Put("kanji/親", "", []byte(`{"kanji":{}}`))
	body, ok := c.Get("kanji/親", "")
	if !ok {
		t.Fatal("cache miss after Put")
	}
	if string(body) != `{"kanji":{}}` {
		t.Errorf("cached body = %q", body)
	}

	// A different query string is a different key.
	if _, ok := c.Get("kanji/親", "grade=2"); ok {
		t.Error("distinct query reported a hit")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("search/parent", "", []byte(`[]`))
	if _, ok := c.Get("search/parent", ""); !ok {
		t.Fatal("fresh entry missed")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("search/parent", ""); ok {
		t.Error("expired entry still served")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not dropped, len = %d", c.Len())
	}
}

func TestCachePutPrunesExpired(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("search/a", "", []byte(`[]`))
	c.Put("search/b", "", []byte(`[]`))
	now = now.Add(2 * time.Minute)
	c.Put("search/c", "", []byte(`[]`))

	if c.Len() != 1 {
		t.Errorf("len after prune = %d, want 1", c.Len())
	}
}

func TestCacheNilSafe(t *testing.T) {
	var c *Cache
	if _, ok := c.Get("x", ""); ok {
		t.Error("nil cache reported a hit")
	}
	c.Put("x", "", []byte("y"))
	if c.Len() != 0 {
		t.Error("nil cache has entries")
	}
}
