package failure

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE(t *testing.T) {
	err := E(WrongPassphrase, "incorrect master password")
	require.Error(t, err)
	assert.Equal(t, "wrong passphrase: incorrect master password", err.Error())
	assert.Equal(t, WrongPassphrase, KindOf(err))
}

func TestE_WithCause(t *testing.T) {
	err := E(TransportFailure, "range query", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.Contains(t, err.Error(), "unexpected EOF")
}

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("unlocking: %w", E(PolicyViolation, "too short"))
	assert.ErrorIs(t, err, ErrPolicyViolation)
	assert.NotErrorIs(t, err, ErrWrongPassphrase)
	assert.Equal(t, PolicyViolation, KindOf(err))
}

func TestIs_DetailNarrowsMatch(t *testing.T) {
	err := E(MalformedInput, "recovery key is too short")
	assert.True(t, errors.Is(err, &Error{Kind: MalformedInput, Detail: "recovery key is too short"}))
	assert.False(t, errors.Is(err, &Error{Kind: MalformedInput, Detail: "recovery key is required"}))
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, Other, KindOf(errors.New("boom")))
	assert.Equal(t, Other, KindOf(nil))
}

func TestKind_Permanent(t *testing.T) {
	for k := range kindNames {
		assert.Equal(t, k == IrrecoverableLoss, k.Permanent(), k.String())
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(NotFound, "record %d", 42)
	assert.Equal(t, "not found: record 42", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}
