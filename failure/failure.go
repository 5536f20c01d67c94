// Package failure defines the tagged error taxonomy shared by every lockbox
// entry point. A domain failure is always an *Error carrying a Kind, so
// callers can branch on what went wrong without parsing messages:
//
//	if errors.Is(err, failure.ErrWrongPassphrase) { ... }
//	switch failure.KindOf(err) { ... }
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	// Other is an unclassified failure (I/O, storage, programming error).
	Other Kind = iota
	// PolicyViolation means the caller's input breaks a policy (e.g. a
	// passphrase that is too short). The user corrects the input.
	PolicyViolation
	// WrongPassphrase means the verifier did not match.
	WrongPassphrase
	// AuthFailure means authenticated decryption failed. Wrong key, corrupt
	// ciphertext and truncated envelopes are indistinguishable by design.
	AuthFailure
	// MalformedInput means input was rejected before any expensive work.
	MalformedInput
	// TransportFailure means a network exchange failed or returned garbage.
	// The result of the operation is unknown, not negative.
	TransportFailure
	// IrrecoverableLoss means the data is gone for good. It is never retried.
	IrrecoverableLoss
	// Locked means the session has been locked and its key material wiped.
	Locked
	// NotFound means the addressed record does not exist.
	NotFound
)

var kindNames = map[Kind]string{
	Other:             "other",
	PolicyViolation:   "policy violation",
	WrongPassphrase:   "wrong passphrase",
	AuthFailure:       "authentication failure",
	MalformedInput:    "malformed input",
	TransportFailure:  "transport failure",
	IrrecoverableLoss: "irrecoverable loss",
	Locked:            "locked",
	NotFound:          "not found",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Permanent reports whether a failure of this kind must not be retried.
func (k Kind) Permanent() bool {
	return k == IrrecoverableLoss
}

// Error is a kind-tagged failure with a short human-readable detail and an
// optional underlying cause.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// E constructs an *Error. Arguments are interpreted by type: a Kind sets the
// kind, a string sets the detail, an error sets the cause.
func E(args ...any) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			e.Detail = a
		case error:
			e.Err = a
		default:
			panic(fmt.Sprintf("failure.E: unsupported argument type %T", arg))
		}
	}
	return e
}

// Errorf constructs an *Error of the given kind with a formatted detail.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. A target with a detail must
// also match the detail, so the package sentinels (which carry none) match
// every error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Detail == "" || t.Detail == e.Detail
}

// KindOf returns the kind of the outermost *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// Sentinels for errors.Is.
var (
	ErrPolicyViolation   = &Error{Kind: PolicyViolation}
	ErrWrongPassphrase   = &Error{Kind: WrongPassphrase}
	ErrAuthFailure       = &Error{Kind: AuthFailure}
	ErrMalformedInput    = &Error{Kind: MalformedInput}
	ErrTransportFailure  = &Error{Kind: TransportFailure}
	ErrIrrecoverableLoss = &Error{Kind: IrrecoverableLoss}
	ErrLocked            = &Error{Kind: Locked}
	ErrNotFound          = &Error{Kind: NotFound}
)
