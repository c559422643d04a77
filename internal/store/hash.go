package store

import (
	"errors"
	"strings"

	"github.com/zeebo/blake3"
)

// Hash is a BLAKE3-256 digest of stored bytes
type Hash [32]byte

// nixAlphabet omits e, o, t and u.
const nixAlphabet = "0123456789abcdfghijklmnpqrsvwxyz"

// encodedHashLen is the nix-base32 length of a 32-byte hash.
const encodedHashLen = (32*8-1)/5 + 1

// HashBytes hashes data
func HashBytes(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// String returns the nix-base32 form used in file names
func (h Hash) String() string {
	out := make([]byte, encodedHashLen)
	for n := encodedHashLen - 1; n >= 0; n-- {
		b := n * 5
		i, j := b/8, uint(b%8)
		c := h[i] >> j
		if i+1 < len(h) {
			c |= h[i+1] << (8 - j)
		}
		out[encodedHashLen-1-n] = nixAlphabet[c&0x1f]
	}
	return string(out)
}

// ParseHash decodes the nix-base32 form
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != encodedHashLen {
		return h, errors.New("hash must be 52 nix-base32 characters")
	}
	for n := 0; n < encodedHashLen; n++ {
		digit := strings.IndexByte(nixAlphabet, s[encodedHashLen-1-n])
		if digit < 0 {
			return h, errors.New("invalid nix-base32 character " + string(s[encodedHashLen-1-n]))
		}
		b := n * 5
		i, j := b/8, uint(b%8)
		h[i] |= byte(digit) << j
		carry := byte(digit) >> (8 - j)
		if i+1 < len(h) {
			h[i+1] |= carry
		} else if carry != 0 {
			return h, errors.New("nix-base32 hash overflows 32 bytes")
		}
	}
	return h, nil
}
