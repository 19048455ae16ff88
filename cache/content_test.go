package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sha256("abc")
const abcDigest = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestContentDigest(t *testing.T) {
	if got := ContentDigest([]byte("abc")); got != abcDigest {
		t.Errorf("ContentDigest() = %s, want %s", got, abcDigest)
	}

	got, err := ReaderDigest(strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("ReaderDigest() error = %v", err)
	}
	if got != abcDigest {
		t.Errorf("ReaderDigest() = %s, want %s", got, abcDigest)
	}
}

func TestFileDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.jpg")
	if err := os.WriteFile(path, []byte("abc"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := FileDigest(path)
	if err != nil {
		t.Fatalf("FileDigest() error = %v", err)
	}
	if got != abcDigest {
		t.Errorf("FileDigest() = %s, want %s", got, abcDigest)
	}

	if _, err := FileDigest(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("FileDigest() of missing file should fail")
	}
}
