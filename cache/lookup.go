package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jonwraymond/invokeops/observe"
)

// Cache is the content-addressable result cache.
//
// It is the only component that writes or deletes store entries. Every
// fault is logged and absorbed: Lookup reports a miss, Store returns an
// error the caller is free to ignore. Caching never blocks the computation
// it fronts.
type Cache struct {
	store   Store
	keyer   Keyer
	policy  Policy
	logger  observe.Logger
	metrics observe.Metrics
	now     func() time.Time
	exists  func(path string) bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithKeyer overrides the key derivation strategy.
func WithKeyer(k Keyer) Option {
	return func(c *Cache) {
		c.keyer = k
	}
}

// WithPolicy sets the cache policy.
func WithPolicy(p Policy) Option {
	return func(c *Cache) {
		c.policy = p
	}
}

// WithInstruments attaches a logger and metrics.
func WithInstruments(in observe.Instruments) Option {
	return func(c *Cache) {
		in = in.Normalize()
		c.logger = in.Logger
		c.metrics = in.Metrics
	}
}

// New creates a Cache over store.
func New(store Store, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	c := &Cache{
		store:   store,
		policy:  DefaultPolicy(),
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		now:     time.Now,
		exists:  fileExists,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.keyer == nil {
		c.keyer = &DefaultKeyer{Version: c.policy.EffectiveVersion("")}
	}
	return c, nil
}

// Policy returns the cache policy.
func (c *Cache) Policy() Policy {
	return c.policy
}

// DeriveKey derives the key for req. Errors wrap ErrEncoding or ErrInvalidKey;
// callers should proceed without caching.
func (c *Cache) DeriveKey(req Request) (Key, error) {
	return c.keyer.Key(req)
}

// Lookup returns the entry for key if it is present and valid.
//
// An entry is invalid when it has expired under Policy.MaxAge or when any
// path in ArtifactRefs no longer exists. Invalid entries are reported as
// misses and purged only when Policy.PurgeInvalid is set.
func (c *Cache) Lookup(ctx context.Context, key Key) (*Entry, bool) {
	entry, err := c.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.metrics.RecordLookup(ctx, key.Namespace, observe.LookupMiss)
			return nil, false
		}
		c.metrics.RecordLookup(ctx, key.Namespace, observe.LookupError)
		c.logger.Warn(ctx, "cache lookup failed",
			observe.F("key", key.String()),
			observe.F("error", err),
		)
		if errors.Is(err, ErrCacheIO) && c.policy.PurgeInvalid {
			c.purge(ctx, key, "unreadable")
		}
		return nil, false
	}

	if reason := c.invalidReason(entry); reason != "" {
		c.metrics.RecordLookup(ctx, key.Namespace, observe.LookupInvalid)
		c.logger.Warn(ctx, "cache entry invalidated",
			observe.F("key", key.String()),
			observe.F("reason", reason),
		)
		if c.policy.PurgeInvalid {
			c.purge(ctx, key, reason)
		}
		return nil, false
	}

	c.metrics.RecordLookup(ctx, key.Namespace, observe.LookupHit)
	c.logger.Debug(ctx, "cache hit", observe.F("key", key.String()))
	return entry, true
}

func (c *Cache) invalidReason(entry *Entry) string {
	if c.policy.Expired(entry.CreatedAt, c.now()) {
		return "expired"
	}
	for _, ref := range entry.ArtifactRefs {
		if !c.exists(ref) {
			return "missing artifact " + ref
		}
	}
	return ""
}

// Store encodes payload and writes it under key together with the artifact
// paths it references. Paths are recorded verbatim.
//
// The returned error wraps ErrEncoding or ErrCacheIO and has already been
// logged; callers should not fail their computation on it.
func (c *Cache) Store(ctx context.Context, key Key, payload any, artifacts ...string) error {
	err := c.writeEntry(ctx, key, payload, artifacts)
	c.metrics.RecordStore(ctx, key.Namespace, err)
	if err != nil {
		c.logger.Warn(ctx, "cache store failed",
			observe.F("key", key.String()),
			observe.F("error", err),
		)
		return err
	}
	c.logger.Debug(ctx, "cache stored",
		observe.F("key", key.String()),
		observe.F("artifacts", len(artifacts)),
	)
	return nil
}

func (c *Cache) writeEntry(ctx context.Context, key Key, payload any, artifacts []string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: payload for %s: %v", ErrEncoding, key, err)
	}

	entry := &Entry{
		Key:       key,
		Version:   c.policy.EffectiveVersion(""),
		CreatedAt: c.now().UTC(),
		Payload:   raw,
	}
	if len(artifacts) > 0 {
		entry.ArtifactRefs = append([]string(nil), artifacts...)
	}

	if err := c.store.Save(ctx, entry); err != nil {
		if errors.Is(err, ErrCacheIO) || errors.Is(err, ErrEncoding) || errors.Is(err, ErrInvalidKey) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCacheIO, err)
	}
	return nil
}

// Invalidate physically deletes the entry for key.
func (c *Cache) Invalidate(ctx context.Context, key Key) error {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn(ctx, "cache invalidate failed",
			observe.F("key", key.String()),
			observe.F("error", err),
		)
		return err
	}
	return nil
}

func (c *Cache) purge(ctx context.Context, key Key, reason string) {
	if err := c.Invalidate(ctx, key); err == nil {
		c.logger.Info(ctx, "cache entry purged",
			observe.F("key", key.String()),
			observe.F("reason", reason),
		)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
