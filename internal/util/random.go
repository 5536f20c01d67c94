package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// RandomString draws n characters uniformly from alphabet using crypto/rand.
func RandomString(alphabet []rune, n int) (string, error) {
	if len(alphabet) == 0 {
		return "", fmt.Errorf("random string: empty alphabet")
	}
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := RandomIntn(len(alphabet))
		if err != nil {
			return "", fmt.Errorf("generating random char index: %w", err)
		}
		sb.WriteRune(alphabet[idx])
	}
	return sb.String(), nil
}

func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
