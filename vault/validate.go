package vault

import (
	"strings"
	"unicode/utf8"

	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/totp"
)

// ValidatePassphrase applies the master passphrase policy. Length is counted
// in Unicode code points.
func ValidatePassphrase(passphrase string) error {
	n := utf8.RuneCountInString(passphrase)
	if n < MinPassphraseLength {
		return failure.Errorf(failure.PolicyViolation, "master password must be at least %d characters", MinPassphraseLength)
	}
	if n < RecommendedPassphraseLength {
		return failure.Errorf(failure.PolicyViolation, "for security, use at least %d characters", RecommendedPassphraseLength)
	}
	return nil
}

func validateRecord(r Record) error {
	fields := []struct {
		name, value string
	}{
		{"site", r.Site},
		{"username", r.Username},
		{"password", r.Password},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return failure.Errorf(failure.PolicyViolation, "%s is required", f.name)
		}
		if err := validateField(f.name, f.value); err != nil {
			return err
		}
	}
	if r.TOTPSecret != "" {
		if err := validateField("totpSecret", r.TOTPSecret); err != nil {
			return err
		}
		if _, err := totp.DecodeSecret(r.TOTPSecret); err != nil {
			return err
		}
	}
	return nil
}

func validateField(name, value string) error {
	if len(value) > MaxFieldSize {
		return failure.Errorf(failure.PolicyViolation, "%s exceeds maximum of %d bytes", name, MaxFieldSize)
	}
	if !utf8.ValidString(value) {
		return failure.Errorf(failure.MalformedInput, "%s contains invalid UTF-8", name)
	}
	return nil
}
