package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/invokeops/observe"
)

type gradePayload struct {
	Mark      float64 `json:"mark"`
	Reasoning string  `json:"reasoning"`
}

// failingStore fails every operation with err.
type failingStore struct {
	err     error
	deletes int
}

func (s *failingStore) Load(context.Context, Key) (*Entry, error) { return nil, s.err }
func (s *failingStore) Save(context.Context, *Entry) error        { return s.err }
func (s *failingStore) Delete(context.Context, Key) error {
	s.deletes++
	return nil
}

func newTestCache(t *testing.T, store Store, opts ...Option) *Cache {
	t.Helper()
	c, err := New(store, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_NilStore(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilStore) {
		t.Errorf("New(nil) error = %v, want ErrNilStore", err)
	}
}

func TestCache_MissThenHit(t *testing.T) {
	c := newTestCache(t, newTestFileStore(t))
	ctx := context.Background()

	key, err := c.DeriveKey(Request{Namespace: "grade_answer", Parameters: map[string]any{"q": "Q1", "marks": 5}})
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}

	if _, ok := c.Lookup(ctx, key); ok {
		t.Fatal("Lookup() on empty cache should miss")
	}

	want := gradePayload{Mark: 4, Reasoning: "covers both points"}
	if err := c.Store(ctx, key, want); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	entry, ok := c.Lookup(ctx, key)
	if !ok {
		t.Fatal("Lookup() after Store should hit")
	}
	if entry.Version != DefaultVersion {
		t.Errorf("entry Version = %q, want %q", entry.Version, DefaultVersion)
	}
	got, err := Decode[gradePayload](entry)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != want {
		t.Errorf("Decode() = %+v, want %+v", got, want)
	}
}

func TestCache_ArtifactInvalidation(t *testing.T) {
	store := NewMemoryStore()
	c := newTestCache(t, store, WithPolicy(Policy{PurgeInvalid: true}))
	ctx := context.Background()

	artifact := filepath.Join(t.TempDir(), "annotated.png")
	if err := os.WriteFile(artifact, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}

	key := testKey(t, "annotations", map[string]any{"image_hash": "abc"})
	if err := c.Store(ctx, key, []string{"box"}, artifact); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	entry, ok := c.Lookup(ctx, key)
	if !ok {
		t.Fatal("Lookup() with artifact present should hit")
	}
	if len(entry.ArtifactRefs) != 1 || entry.ArtifactRefs[0] != artifact {
		t.Errorf("ArtifactRefs = %v, want [%s]", entry.ArtifactRefs, artifact)
	}

	if err := os.Remove(artifact); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup(ctx, key); ok {
		t.Fatal("Lookup() with missing artifact should miss")
	}
	if store.Len() != 0 {
		t.Errorf("invalid entry should be purged, store has %d entries", store.Len())
	}
}

func TestCache_InvalidEntryKeptWithoutPurge(t *testing.T) {
	store := NewMemoryStore()
	c := newTestCache(t, store)
	c.exists = func(string) bool { return false }
	ctx := context.Background()

	key := testKey(t, "annotations", nil)
	if err := c.Store(ctx, key, "x", "/gone.png"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup(ctx, key); ok {
		t.Fatal("Lookup() should miss")
	}
	if store.Len() != 1 {
		t.Errorf("entry should stay in the store without PurgeInvalid, Len() = %d", store.Len())
	}
}

func TestCache_Expiry(t *testing.T) {
	c := newTestCache(t, NewMemoryStore(), WithPolicy(Policy{MaxAge: time.Hour}))
	ctx := context.Background()

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := testKey(t, "student_report", map[string]any{"id": "s1"})
	if err := c.Store(ctx, key, "report"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(59 * time.Minute)
	if _, ok := c.Lookup(ctx, key); !ok {
		t.Error("entry within MaxAge should hit")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Lookup(ctx, key); ok {
		t.Error("entry past MaxAge should miss")
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	fs := newTestFileStore(t)
	c := newTestCache(t, fs, WithPolicy(Policy{PurgeInvalid: true}))
	ctx := context.Background()
	key := testKey(t, "ocr", map[string]any{"image_hash": "abc"})

	path, _ := fs.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Lookup(ctx, key); ok {
		t.Fatal("corrupt entry should be a miss")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("corrupt entry should be purged, stat error = %v", err)
	}
}

func TestCache_StoreFaultsAreAbsorbed(t *testing.T) {
	var buf bytes.Buffer
	store := &failingStore{err: errors.New("disk full")}
	c := newTestCache(t, store, WithInstruments(observe.Instruments{
		Logger: observe.NewLoggerWithWriter("debug", &buf),
	}))
	ctx := context.Background()
	key := testKey(t, "moderate", nil)

	err := c.Store(ctx, key, map[string]int{"mark": 1})
	if !errors.Is(err, ErrCacheIO) {
		t.Errorf("Store() error = %v, want ErrCacheIO", err)
	}
	if _, ok := c.Lookup(ctx, key); ok {
		t.Error("Lookup() over a failing store should miss")
	}
	if store.deletes != 0 {
		t.Errorf("unreadable entries should not be purged without PurgeInvalid, deletes = %d", store.deletes)
	}

	out := buf.String()
	for _, msg := range []string{"cache store failed", "cache lookup failed", "disk full"} {
		if !strings.Contains(out, msg) {
			t.Errorf("log output missing %q:\n%s", msg, out)
		}
	}
}

func TestCache_StoreEncodingError(t *testing.T) {
	store := NewMemoryStore()
	c := newTestCache(t, store)
	key := testKey(t, "ocr", nil)

	err := c.Store(context.Background(), key, map[string]any{"bad": make(chan int)})
	if !errors.Is(err, ErrEncoding) {
		t.Errorf("Store() error = %v, want ErrEncoding", err)
	}
	if store.Len() != 0 {
		t.Error("unencodable payload should not be stored")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(t, NewMemoryStore())
	ctx := context.Background()
	key := testKey(t, "class_overview", nil)

	if err := c.Store(ctx, key, "overview"); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, ok := c.Lookup(ctx, key); ok {
		t.Error("Lookup() after Invalidate should miss")
	}
	if err := c.Invalidate(ctx, key); err != nil {
		t.Errorf("Invalidate() should be idempotent, got %v", err)
	}
}

func TestCache_PolicyVersionChangesKeys(t *testing.T) {
	v2 := newTestCache(t, NewMemoryStore())
	v3 := newTestCache(t, NewMemoryStore(), WithPolicy(Policy{Version: "3.0"}))
	req := Request{Namespace: "ocr", Parameters: map[string]any{"image_hash": "abc"}}

	k2, err := v2.DeriveKey(req)
	if err != nil {
		t.Fatal(err)
	}
	k3, err := v3.DeriveKey(req)
	if err != nil {
		t.Fatal(err)
	}
	if k2 == k3 {
		t.Error("bumping the policy version should orphan existing keys")
	}
	if v3.Policy().Version != "3.0" {
		t.Errorf("Policy().Version = %q", v3.Policy().Version)
	}
}

func TestCache_WithKeyer(t *testing.T) {
	fixed := Key{Namespace: "ocr", Digest: strings.Repeat("0", 64)}
	c := newTestCache(t, NewMemoryStore(), WithKeyer(keyerFunc(func(Request) (Key, error) {
		return fixed, nil
	})))

	got, err := c.DeriveKey(Request{Namespace: "anything"})
	if err != nil || got != fixed {
		t.Errorf("DeriveKey() = %v, %v; want %v", got, err, fixed)
	}
}

type keyerFunc func(Request) (Key, error)

func (f keyerFunc) Key(req Request) (Key, error) { return f(req) }

func TestDecode(t *testing.T) {
	if _, err := Decode[string](nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Decode(nil) error = %v, want ErrNotFound", err)
	}

	entry := &Entry{Key: testKey(t, "ocr", nil), Payload: json.RawMessage(`{"mark":"x"}`)}
	if _, err := Decode[gradePayload](entry); !errors.Is(err, ErrEncoding) {
		t.Errorf("Decode() type mismatch error = %v, want ErrEncoding", err)
	}
}
