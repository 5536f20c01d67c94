// Package totp implements RFC 4226 HOTP and RFC 6238 TOTP codes as shown by
// authenticator apps: HMAC-SHA1, six digits, 30 second steps.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/internal/util"
)

const (
	Digits = 6
	// Period is the time step in seconds.
	Period = 30
	// Window is the number of adjacent steps accepted on either side.
	Window = 1
	// SecretSize is the number of random bytes in a generated secret.
	SecretSize = 20

	// DefaultIssuer labels provisioning URIs when no issuer is configured.
	DefaultIssuer = "Lockbox"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Code is a TOTP value together with the seconds left in its step.
type Code struct {
	Value            string `json:"code"`
	SecondsRemaining int    `json:"secondsRemaining"`
}

// GenerateSecret returns 20 random bytes as unpadded RFC 4648 base32.
func GenerateSecret() (string, error) {
	raw, err := util.RandomBytes(SecretSize)
	if err != nil {
		return "", failure.E(failure.Other, "generating totp secret", err)
	}
	defer util.WipeBytes(raw)
	return encoding.EncodeToString(raw), nil
}

// DecodeSecret decodes a base32 secret the way authenticator apps accept it:
// case-insensitive, with spaces, dashes, padding and any other character
// outside the alphabet skipped. Trailing bits that do not fill a byte are
// dropped.
func DecodeSecret(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*5/8)
	var acc uint32
	var bits uint
	for _, r := range strings.ToUpper(s) {
		idx := strings.IndexRune(alphabet, r)
		if idx < 0 {
			continue
		}
		acc = acc<<5 | uint32(idx)
		bits += 5
		if bits >= 8 {
			out = append(out, byte(acc>>(bits-8)))
			bits -= 8
		}
	}
	if len(out) == 0 {
		return nil, failure.E(failure.MalformedInput, "totp secret has no base32 characters")
	}
	return out, nil
}

// CounterFor returns floor(unixSeconds / step).
func CounterFor(unixSeconds, step int64) uint64 {
	if unixSeconds < 0 || step <= 0 {
		return 0
	}
	return uint64(unixSeconds / step)
}

// HOTP computes the RFC 4226 code for counter.
func HOTP(secret []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%0*d", Digits, bin%1_000_000)
}

// CodeAt returns the code for the step containing t.
func CodeAt(secret string, t time.Time) (Code, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return Code{}, err
	}
	defer util.WipeBytes(key)

	unix := t.Unix()
	return Code{
		Value:            HOTP(key, CounterFor(unix, Period)),
		SecondsRemaining: Period - int(unix%Period),
	}, nil
}

// CurrentCode returns the code for now.
func CurrentCode(secret string) (Code, error) {
	return CodeAt(secret, time.Now())
}

// VerifyAt reports whether candidate matches the code for any step within
// window of the step containing t. Spaces in candidate are ignored.
func VerifyAt(secret, candidate string, t time.Time, window int) bool {
	candidate = strings.ReplaceAll(strings.TrimSpace(candidate), " ", "")
	if len(candidate) != Digits {
		return false
	}
	key, err := DecodeSecret(secret)
	if err != nil {
		return false
	}
	defer util.WipeBytes(key)

	counter := int64(CounterFor(t.Unix(), Period))
	matched := false
	for i := -window; i <= window; i++ {
		c := counter + int64(i)
		if c < 0 {
			continue
		}
		expected := HOTP(key, uint64(c))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1 {
			matched = true
		}
	}
	return matched
}

// Verify is VerifyAt for now.
func Verify(secret, candidate string, window int) bool {
	return VerifyAt(secret, candidate, time.Now(), window)
}

// ProvisioningURI builds the otpauth:// URI authenticator apps scan.
func ProvisioningURI(secret, account, issuer string) string {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	label := uriComponent(issuer + ":" + account)
	var b strings.Builder
	b.WriteString("otpauth://totp/")
	b.WriteString(label)
	b.WriteString("?secret=")
	b.WriteString(uriComponent(secret))
	b.WriteString("&issuer=")
	b.WriteString(uriComponent(issuer))
	b.WriteString("&algorithm=SHA1&digits=")
	b.WriteString(strconv.Itoa(Digits))
	b.WriteString("&period=")
	b.WriteString(strconv.Itoa(Period))
	return b.String()
}

// uriComponent escapes every reserved character, spaces as %20.
func uriComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
