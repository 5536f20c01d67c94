package passgen

import (
	"strings"
	"testing"

	"github.com/jmcleod/lockbox/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	pw, err := Generate(DefaultLength, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, pw, DefaultLength)

	digits, err := Generate(64, Options{Numbers: true})
	require.NoError(t, err)
	assert.Empty(t, strings.Trim(digits, numbers))

	a, _ := Generate(32, DefaultOptions())
	b, _ := Generate(32, DefaultOptions())
	assert.NotEqual(t, a, b)
}

func TestGenerate_Rejects(t *testing.T) {
	_, err := Generate(16, Options{})
	assert.ErrorIs(t, err, failure.ErrPolicyViolation)
	_, err = Generate(0, DefaultOptions())
	assert.ErrorIs(t, err, failure.ErrPolicyViolation)
	_, err = Generate(MaxLength+1, DefaultOptions())
	assert.ErrorIs(t, err, failure.ErrPolicyViolation)
}

func TestStrength(t *testing.T) {
	cases := []struct {
		pw    string
		score int
	}{
		{"", 0},
		{"abc", 1},
		{"abcdefgh", 2},
		{"abcdefghijkl", 3},
		{"Abcdefghijkl", 4},
		{"Abcdefghijk1", 5},
		{"Abcdefghij1!", 5},
		{"A1!", 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.score, Strength(tc.pw), tc.pw)
	}
	assert.Equal(t, "weak", Label(1))
	assert.Equal(t, "strong", Label(5))
}
