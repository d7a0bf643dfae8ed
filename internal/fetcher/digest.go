package fetcher

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// DefaultAlgorithm is the digest used when none is configured
const DefaultAlgorithm = "sha256"

var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// NormalizeAlgorithm lower-cases the name and applies the default
func NormalizeAlgorithm(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultAlgorithm
	}
	return name
}

func newHash(name string) (hash.Hash, error) {
	switch NormalizeAlgorithm(name) {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "sha3-256":
		return sha3.New256(), nil
	case "blake2b", "blake2b-256":
		return blake2b.New256(nil)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Digest returns the hex encoded digest of data
func Digest(algorithm string, data []byte) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
