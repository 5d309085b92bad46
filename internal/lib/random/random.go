package random

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Alphabet is the 62-symbol set codes are drawn from. Codes are case-sensitive.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789"

var ErrInvalidLength = errors.New("length must be positive")

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// NewRandomString generates a cryptographically secure random alphanumeric string of the specified size.
func NewRandomString(size int) (string, error) {
	const op = "lib.random.NewRandomString"

	if size <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidLength)
	}

	b := make([]byte, size)
	for i := range b {
		num, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		b[i] = Alphabet[num.Int64()]
	}

	return string(b), nil
}

// DefaultLength is the code length used when Generator.Length is not set.
const DefaultLength = 7

// Generator produces codes of a fixed length.
type Generator struct {
	Length int
}

func (g Generator) Generate() (string, error) {
	if g.Length <= 0 {
		return NewRandomString(DefaultLength)
	}
	return NewRandomString(g.Length)
}
