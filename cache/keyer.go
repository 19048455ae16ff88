package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultVersion is the cache-format version used when a request does not declare one.
const DefaultVersion = "2.0"

// Keyer derives deterministic cache keys from invocation requests.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map insertion order.
// - Sensitivity: any change in namespace, parameters or version changes the digest.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key derives the cache key for req.
	Key(req Request) (Key, error)
}

// DefaultKeyer derives SHA-256 keys over canonical JSON.
type DefaultKeyer struct {
	// Version is used for requests with an empty Version.
	// If empty, DefaultVersion is used.
	Version string
}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{Version: DefaultVersion}
}

// Key derives the cache key for req.
func (k *DefaultKeyer) Key(req Request) (Key, error) {
	version := req.Version
	if version == "" {
		version = k.Version
	}
	return DeriveKey(req.Namespace, req.Parameters, version)
}

// DeriveKey fingerprints namespace, params and version.
//
// The digest is the lowercase hex SHA-256 of the canonical JSON envelope
// {"namespace":...,"parameters":...,"version":...} where every object has
// its keys sorted and non-ASCII text is written as UTF-8.
func DeriveKey(namespace string, params map[string]any, version string) (Key, error) {
	if err := validateNamespace(namespace); err != nil {
		return Key{}, err
	}
	if version == "" {
		version = DefaultVersion
	}

	envelope := map[string]any{
		"namespace":  namespace,
		"parameters": params,
		"version":    version,
	}
	canonical, err := Canonicalize(envelope)
	if err != nil {
		return Key{}, err
	}

	sum := sha256.Sum256(canonical)
	return Key{Namespace: namespace, Digest: hex.EncodeToString(sum[:])}, nil
}

// Canonicalize produces a deterministic JSON representation of v.
// Maps are sorted by key to ensure consistent ordering.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := canonicalize(&buf, v, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func canonicalize(buf *bytes.Buffer, v any, path string) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case []byte:
		return fmt.Errorf("%w: parameter %q is binary; pass its ContentDigest instead", ErrEncoding, pathOrRoot(path))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%w: parameter %q is not a finite number", ErrEncoding, pathOrRoot(path))
		}
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return fmt.Errorf("%w: parameter %q is not a finite number", ErrEncoding, pathOrRoot(path))
		}
	case map[string]any:
		return canonicalizeMap(buf, val, path)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return canonicalizeMap(buf, m, path)
	case []any:
		return canonicalizeSlice(buf, val, path)
	case []string:
		s := make([]any, len(val))
		for i, str := range val {
			s[i] = str
		}
		return canonicalizeSlice(buf, s, path)
	}
	return encodeValue(buf, v, path)
}

func canonicalizeMap(buf *bytes.Buffer, m map[string]any, path string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, k, path); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := canonicalize(buf, m[k], joinPath(path, k)); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func canonicalizeSlice(buf *bytes.Buffer, s []any, path string) error {
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := canonicalize(buf, v, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// encodeValue writes v with encoding/json, which sorts the keys of any
// remaining typed maps. HTML escaping is disabled so keys depend only on content.
func encodeValue(buf *bytes.Buffer, v any, path string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("%w: parameter %q: %v", ErrEncoding, pathOrRoot(path), err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "."
	}
	return strings.TrimPrefix(path, "parameters.")
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
