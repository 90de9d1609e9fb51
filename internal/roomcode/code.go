// Package roomcode mints and validates the short shareable room codes.
package roomcode

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// Alphabet deliberately drops 0/O and 1/I so codes survive being read aloud.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Length of a generated code.
const Length = 6

// MinJoinLength is the shortest code accepted on join.
const MinJoinLength = 4

var ErrInvalidCode = errors.New("invalid room code")

// Generate returns a random Length-character code.
func Generate() (string, error) {
	code := make([]byte, Length)
	for i := 0; i < Length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(Alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = Alphabet[num.Int64()]
	}
	return string(code), nil
}

// Normalize trims whitespace and uppercases, so codes are accepted
// case-insensitively.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a normalized code before any transport activity happens.
func Validate(code string) error {
	if len(code) < MinJoinLength {
		return ErrInvalidCode
	}
	return nil
}
