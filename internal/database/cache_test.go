package database

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, maxEntries int) *SynthesisCache {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	c, err := NewSynthesisCache(db, maxEntries)
	if err != nil {
		t.Fatalf("NewSynthesisCache failed: %v", err)
	}
	clock := time.Unix(1700000000, 0)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return c
}

func TestCacheKey_Hash(t *testing.T) {
	base := CacheKey{Version: "0.16.0", StyleID: 2, Text: "こんにちは"}
	if base.Hash() != base.Hash() {
		t.Fatal("hash is not deterministic")
	}
	variants := []CacheKey{
		{Version: "0.15.0", StyleID: 2, Text: "こんにちは"},
		{Version: "0.16.0", StyleID: 3, Text: "こんにちは"},
		{Version: "0.16.0", StyleID: 2, Text: "こんばんは"},
		{Version: "0.16.0", StyleID: 2, Text: "こんにちは", Kana: true},
		{Version: "0.16.0", StyleID: 2, Text: "こんにちは", Options: "upspeak=0"},
	}
	for _, v := range variants {
		if v.Hash() == base.Hash() {
			t.Errorf("%+v collides with base key", v)
		}
	}
}

func TestSynthesisCache_GetPut(t *testing.T) {
	c := newTestCache(t, 0)
	key := CacheKey{Version: "0.16.0", StyleID: 2, Text: "テスト"}

	if _, ok, err := c.Get(key); err != nil || ok {
		t.Fatalf("Get on empty cache: ok=%v err=%v", ok, err)
	}
	wav := []byte("RIFF....WAVEdata")
	if err := c.Put(key, wav); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get after Put: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, wav) {
		t.Errorf("Get: got %q, want %q", got, wav)
	}

	// 覆盖写入
	if err := c.Put(key, []byte("RIFF2")); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}
	got, _, _ = c.Get(key)
	if string(got) != "RIFF2" {
		t.Errorf("overwrite: got %q", got)
	}

	s, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if s.Entries != 1 || s.Bytes != 5 || s.Hits != 2 {
		t.Errorf("Stats: got %+v", s)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := c.Get(key); ok {
		t.Error("entry survived Clear")
	}
}

func TestSynthesisCache_PrunesLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, 2)
	k := func(s string) CacheKey { return CacheKey{Version: "0.16.0", StyleID: 2, Text: s} }

	for _, s := range []string{"a", "b"} {
		if err := c.Put(k(s), []byte(s)); err != nil {
			t.Fatalf("Put %s failed: %v", s, err)
		}
	}
	// 访问 a，使 b 成为最久未使用
	if _, ok, _ := c.Get(k("a")); !ok {
		t.Fatal("a missing")
	}
	if err := c.Put(k("c"), []byte("c")); err != nil {
		t.Fatalf("Put c failed: %v", err)
	}

	for s, want := range map[string]bool{"a": true, "b": false, "c": true} {
		if _, ok, _ := c.Get(k(s)); ok != want {
			t.Errorf("%s present=%v, want %v", s, ok, want)
		}
	}
}

func TestOpen_MemoryDatabase(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if db.Path() != ":memory:" {
		t.Errorf("Path: got %q", db.Path())
	}
}
