package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"io"
	"math/big"
	"strconv"
)

const (
	resetCodeMin  = 10000
	resetCodeSpan = 90000
)

// NewResetCode returns a uniformly random five digit code in [10000, 99999].
func NewResetCode() (string, error) {
	return NewResetCodeFrom(rand.Reader)
}

// NewResetCodeFrom draws the code from r. Tests pass a deterministic reader.
func NewResetCodeFrom(r io.Reader) (string, error) {
	n, err := rand.Int(r, big.NewInt(resetCodeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resetCodeMin+n.Int64(), 10), nil
}

func HashResetCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// ResetCodeMatches compares the hash of input against stored in constant time.
// Equal hashes imply byte-exact, case-sensitive equality of the inputs.
func ResetCodeMatches(stored [32]byte, input string) bool {
	provided := HashResetCode(input)
	return subtle.ConstantTimeCompare(stored[:], provided[:]) == 1
}
