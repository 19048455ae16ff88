package cache

import "time"

// Policy configures cache behavior.
type Policy struct {
	// Version is the cache-format version mixed into every derived key.
	// Bumping it orphans all existing entries.
	// Default: DefaultVersion
	Version string

	// MaxAge is how long an entry stays valid after it was stored.
	// If zero, entries never expire.
	MaxAge time.Duration

	// PurgeInvalid physically deletes entries that a lookup rejects
	// (missing artifacts, expired, undecodable). When false, invalid
	// entries are treated as misses and left on disk until overwritten.
	PurgeInvalid bool
}

// DefaultPolicy returns the default caching policy.
// Version: "2.0", MaxAge: none, PurgeInvalid: false
func DefaultPolicy() Policy {
	return Policy{
		Version:      DefaultVersion,
		MaxAge:       0,
		PurgeInvalid: false,
	}
}

// EffectiveVersion returns the version to use for a request declaring requested.
func (p Policy) EffectiveVersion(requested string) string {
	if requested != "" {
		return requested
	}
	if p.Version != "" {
		return p.Version
	}
	return DefaultVersion
}

// Expired reports whether an entry created at createdAt is past MaxAge.
func (p Policy) Expired(createdAt time.Time, now time.Time) bool {
	if p.MaxAge <= 0 || createdAt.IsZero() {
		return false
	}
	return now.Sub(createdAt) > p.MaxAge
}
