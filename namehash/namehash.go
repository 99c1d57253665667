// Package namehash computes the content-addressing key used for every
// catalog entry.
//
// A key is the first 64 bits of MurmurHash3 x64-128 over the sanitized path
// followed by a single NUL byte, using a fixed seed. The function must stay
// bit-identical to the one used when the containers were built: name based
// lookups work by hashing a candidate name and querying the catalog with the
// result.
package namehash

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Seed is the fixed MurmurHash3 seed used for all path keys.
const Seed uint32 = 42

const (
	// CoreSuffix is appended to names that carry no recognised suffix.
	CoreSuffix = ".core"

	// StreamSuffix marks bulk/stream data that is never parsed as records.
	StreamSuffix = ".stream"
)

// ErrInvalidHash is returned by Parse for malformed hash strings.
var ErrInvalidHash = errors.New("namehash: invalid hash")

// Hash is a catalog key.
type Hash uint64

// String returns the hash as 16 upper-case hex digits.
func (h Hash) String() string {
	return fmt.Sprintf("%016X", uint64(h))
}

// Sanitize normalizes a user or prefetch supplied path into the form that is
// hashed: backslashes become slashes, leading slashes are dropped and the
// ".core" suffix is added unless the name already ends in ".core" or
// ".stream".
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if !strings.HasSuffix(name, CoreSuffix) && !strings.HasSuffix(name, StreamSuffix) {
		name += CoreSuffix
	}
	return name
}

// Of returns the key for name after sanitizing it.
func Of(name string) Hash {
	return Sum([]byte(Sanitize(name)))
}

// Sum hashes an already sanitized name.
func Sum(sanitized []byte) Hash {
	buf := make([]byte, len(sanitized)+1)
	copy(buf, sanitized)
	h1, _ := murmur3.Sum128WithSeed(buf, Seed)
	return Hash(h1)
}

// IsStream reports whether name refers to bulk/stream data.
func IsStream(name string) bool {
	return strings.HasSuffix(name, StreamSuffix)
}

// Parse parses a hash written as hex with an optional 0x prefix
// ("0xAAA", "00000000000000AA") or, with a "#" prefix, as decimal ("#170").
func Parse(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidHash
	}
	if rest, ok := strings.CutPrefix(s, "#"); ok {
		v, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidHash, s)
		}
		return Hash(v), nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	return Hash(v), nil
}

// LooksLikeHash reports whether s is written in one of the forms Parse
// accepts with an explicit prefix, so callers can tell hashes from names.
func LooksLikeHash(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") && !strings.HasPrefix(s, "#") {
		return false
	}
	_, err := Parse(s)
	return err == nil
}
