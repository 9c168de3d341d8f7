package accesscode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Alphabet leaves out visually ambiguous characters (0/O, 1/I/L) so the code
// can be read out loud or typed from a printed card without mistakes.
const (
	Alphabet   = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	CodeLength = 6

	maxAttempts = 20
)

// ErrCodeSpaceExhausted is returned when every generation attempt collided
// with an existing code. With a 32^6 code space this is practically
// unreachable unless the exists check is broken.
var ErrCodeSpaceExhausted = errors.New("access code space exhausted after max attempts")

// ExistsFunc reports whether a code is already taken by a principal tab.
type ExistsFunc func(code string) (bool, error)

// Generator produces unique access codes for principal tabs.
type Generator struct {
	exists ExistsFunc
}

func NewGenerator(exists ExistsFunc) *Generator {
	return &Generator{exists: exists}
}

// Generate returns a fresh 6-character code that no principal tab holds,
// retrying on collision up to the attempt budget.
func (g *Generator) Generate() (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		taken, err := g.exists(code)
		if err != nil {
			return "", fmt.Errorf("checking access code %s: %w", code, err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func randomCode() (string, error) {
	buf := make([]byte, CodeLength)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}
