// Package dataset handles the distribution archives of the windowed traffic
// dataset: checksum verification, extraction, loading, merging and splitting
// of the per-class, per-window sample tables.
package dataset

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// digestBufSize is the read buffer used when hashing archives.
const digestBufSize = 1 << 20

// ChecksumExt is the extension of per-archive manifest entries, one file per
// archive, named "<archive>.sha256".
const ChecksumExt = ".sha256"

// Digest computes the hex-encoded SHA-256 digest of a file's bytes.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return DigestReader(f)
}

// DigestReader computes the hex-encoded SHA-256 digest of everything in r.
func DigestReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, digestBufSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Manifest maps archive file names to their expected hex SHA-256 digests.
type Manifest map[string]string

// LoadManifest reads every "*.sha256" file in dir into a Manifest. The entry
// key is the archive file name (the sidecar name minus the extension).
func LoadManifest(dir string) (Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read checksum dir %s: %w", dir, err)
	}

	m := make(Manifest)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ChecksumExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read checksum file %s: %w", name, err)
		}
		digest, err := ParseChecksum(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		m[strings.TrimSuffix(name, ChecksumExt)] = digest
	}
	return m, nil
}

// ParseChecksum extracts the hex digest from a checksum file body. Accepted
// forms are "<hash>  filename", "<hash> *filename" and a bare "<hash>"; any
// non-hex decoration around the first token is stripped. A token that does
// not reduce to 64 hex characters is malformed.
func ParseChecksum(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrChecksumMalformed
	}
	line := strings.SplitN(text, "\n", 2)[0]
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ErrChecksumMalformed
	}

	var b strings.Builder
	for _, c := range strings.ToLower(fields[0]) {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			b.WriteRune(c)
		}
	}
	digest := b.String()
	if len(digest) != hex.EncodedLen(sha256.Size) {
		return "", ErrChecksumMalformed
	}
	return digest, nil
}

// Expected returns the manifest digest for an archive name.
func (m Manifest) Expected(archive string) (string, error) {
	digest, ok := m[archive]
	if !ok {
		return "", fmt.Errorf("%s: %w", archive, ErrChecksumMissing)
	}
	return digest, nil
}

// VerifyArchive compares the archive's actual digest against the expected
// one and returns an *IntegrityError on mismatch. It must be called for
// every archive before extraction; an unverified archive never reaches the
// extractor.
func VerifyArchive(path, expected string) error {
	actual, err := Digest(path)
	if err != nil {
		return err
	}
	expected = strings.ToLower(expected)
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return &IntegrityError{
			Archive:  filepath.Base(path),
			Expected: expected,
			Actual:   actual,
		}
	}
	return nil
}
