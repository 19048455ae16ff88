package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxNamespaceLength is the maximum allowed length for a key namespace.
const MaxNamespaceLength = 128

// Sentinel errors for cache operations.
var (
	// ErrNotFound is returned by a Store when no entry exists for a key.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrInvalidKey is returned for keys with an unusable namespace or digest.
	ErrInvalidKey = errors.New("cache: key is invalid")

	// ErrEncoding indicates request parameters or a payload could not be serialized.
	// Callers proceed without caching.
	ErrEncoding = errors.New("cache: encoding failed")

	// ErrCacheIO indicates a read or write fault in the underlying store.
	// It is logged and absorbed, never surfaced as an operation failure.
	ErrCacheIO = errors.New("cache: store I/O failed")

	// ErrNilStore indicates a Cache was constructed without a Store.
	ErrNilStore = errors.New("cache: store is nil")
)

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Key addresses a cached result.
// Namespace groups keys by operation kind; Digest fingerprints the parameters.
type Key struct {
	Namespace string `json:"namespace"`
	Digest    string `json:"digest"`
}

// String returns namespace/digest.
func (k Key) String() string {
	return k.Namespace + "/" + k.Digest
}

// Validate checks that the key can be used to address a store entry.
func (k Key) Validate() error {
	if err := validateNamespace(k.Namespace); err != nil {
		return err
	}
	if !digestPattern.MatchString(k.Digest) {
		return fmt.Errorf("%w: digest %q is not a sha256 hex string", ErrInvalidKey, k.Digest)
	}
	return nil
}

func validateNamespace(ns string) error {
	if strings.TrimSpace(ns) == "" {
		return fmt.Errorf("%w: namespace is empty", ErrInvalidKey)
	}
	if len(ns) > MaxNamespaceLength {
		return fmt.Errorf("%w: namespace exceeds %d bytes", ErrInvalidKey, MaxNamespaceLength)
	}
	// Namespaces become directory names in the file store.
	if strings.ContainsAny(ns, "/\\\n\r\x00") || ns == "." || ns == ".." {
		return fmt.Errorf("%w: namespace %q contains path characters", ErrInvalidKey, ns)
	}
	return nil
}

// Request is the cacheable part of an invocation.
//
// Parameters hold JSON-serializable scalars, strings and nested structures.
// Binary content must be reduced with ContentDigest before it is added.
type Request struct {
	Namespace  string
	Parameters map[string]any
	Version    string
}

// Entry is a persisted cache value.
type Entry struct {
	Key          Key             `json:"key"`
	Version      string          `json:"version,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ArtifactRefs []string        `json:"artifact_refs,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

// Store persists cache entries.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Atomicity: a concurrent Load never observes a partially written entry.
// - Errors: Load returns ErrNotFound on miss; Delete is idempotent.
type Store interface {
	// Load reads the entry for key.
	Load(ctx context.Context, key Key) (*Entry, error)

	// Save writes entry, replacing any previous entry for the same key.
	Save(ctx context.Context, entry *Entry) error

	// Delete removes the entry for key. No error on miss.
	Delete(ctx context.Context, key Key) error
}

// Decode unmarshals an entry payload into T.
func Decode[T any](entry *Entry) (T, error) {
	var out T
	if entry == nil {
		return out, ErrNotFound
	}
	if err := json.Unmarshal(entry.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: decode %s: %v", ErrEncoding, entry.Key, err)
	}
	return out, nil
}
