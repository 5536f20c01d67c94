// Package passgen generates random passwords and scores their strength.
package passgen

import (
	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/internal/util"
)

const (
	DefaultLength = 16
	MaxLength     = 128

	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numbers   = "0123456789"
	symbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// Options selects the character classes drawn from.
type Options struct {
	Lowercase bool
	Uppercase bool
	Numbers   bool
	Symbols   bool
}

// DefaultOptions enables every class.
func DefaultOptions() Options {
	return Options{Lowercase: true, Uppercase: true, Numbers: true, Symbols: true}
}

func (o Options) charset() []rune {
	var set string
	if o.Lowercase {
		set += lowercase
	}
	if o.Uppercase {
		set += uppercase
	}
	if o.Numbers {
		set += numbers
	}
	if o.Symbols {
		set += symbols
	}
	return []rune(set)
}

// Generate returns a password of length characters drawn uniformly from the
// classes enabled in opts.
func Generate(length int, opts Options) (string, error) {
	if length < 1 || length > MaxLength {
		return "", failure.Errorf(failure.PolicyViolation, "length must be between 1 and %d", MaxLength)
	}
	set := opts.charset()
	if len(set) == 0 {
		return "", failure.E(failure.PolicyViolation, "at least one character class is required")
	}
	pw, err := util.RandomString(set, length)
	if err != nil {
		return "", failure.E(failure.Other, "generating password", err)
	}
	return pw, nil
}

// Strength scores password from 0 to 5: one point each for at least 8 and at
// least 12 characters, and for containing lowercase, uppercase, digits and
// anything else.
func Strength(password string) int {
	n := len([]rune(password))
	score := 0
	if n >= 8 {
		score++
	}
	if n >= 12 {
		score++
	}
	var lower, upper, digit, other bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}
	for _, b := range []bool{lower, upper, digit, other} {
		if b {
			score++
		}
	}
	return min(score, 5)
}

// Label names a strength score.
func Label(score int) string {
	switch {
	case score <= 2:
		return "weak"
	case score <= 3:
		return "fair"
	case score == 4:
		return "good"
	default:
		return "strong"
	}
}
