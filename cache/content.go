package cache

import (
	"fmt"
	"io"
	"os"

	digest "github.com/opencontainers/go-digest"
)

// ContentDigest returns the lowercase hex SHA-256 of data.
// Binary parameters (images, documents) are added to a Request by digest,
// never by raw bytes.
func ContentDigest(data []byte) string {
	return digest.SHA256.FromBytes(data).Encoded()
}

// ReaderDigest returns the lowercase hex SHA-256 of everything read from r.
func ReaderDigest(r io.Reader) (string, error) {
	d, err := digest.SHA256.FromReader(r)
	if err != nil {
		return "", fmt.Errorf("cache: digest content: %w", err)
	}
	return d.Encoded(), nil
}

// FileDigest returns the lowercase hex SHA-256 of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // caller-supplied content path
	if err != nil {
		return "", fmt.Errorf("cache: digest file: %w", err)
	}
	defer f.Close()
	return ReaderDigest(f)
}
