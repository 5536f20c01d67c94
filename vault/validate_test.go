package vault

import (
	"strings"
	"testing"

	"github.com/jmcleod/lockbox/failure"
	"github.com/stretchr/testify/assert"
)

func TestValidatePassphrase(t *testing.T) {
	assert.NoError(t, ValidatePassphrase("twelve chars"))
	assert.ErrorIs(t, ValidatePassphrase(""), failure.ErrPolicyViolation)
	assert.ErrorIs(t, ValidatePassphrase("seven77"), failure.ErrPolicyViolation)
	assert.ErrorIs(t, ValidatePassphrase("eleven char"), failure.ErrPolicyViolation)
}

func TestValidateRecord(t *testing.T) {
	valid := Record{Site: "example.com", Username: "alice", Password: "hunter2"}
	assert.NoError(t, validateRecord(valid))

	t.Run("missing fields", func(t *testing.T) {
		for _, r := range []Record{
			{Username: "alice", Password: "p"},
			{Site: "s", Password: "p"},
			{Site: "s", Username: "u", Password: "  "},
		} {
			assert.ErrorIs(t, validateRecord(r), failure.ErrPolicyViolation)
		}
	})

	t.Run("too large", func(t *testing.T) {
		r := valid
		r.Password = strings.Repeat("x", MaxFieldSize+1)
		err := validateRecord(r)
		assert.ErrorIs(t, err, failure.ErrPolicyViolation)
		assert.Contains(t, err.Error(), "exceeds maximum")
	})

	t.Run("invalid utf8", func(t *testing.T) {
		r := valid
		r.Site = "bad\xff"
		assert.ErrorIs(t, validateRecord(r), failure.ErrMalformedInput)
	})

	t.Run("bad totp secret", func(t *testing.T) {
		r := valid
		r.TOTPSecret = "!!!!"
		assert.ErrorIs(t, validateRecord(r), failure.ErrMalformedInput)
	})
}
