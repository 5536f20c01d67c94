package totp

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmcleod/lockbox/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// base32 of ASCII "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestHOTP_RFC4226(t *testing.T) {
	key := []byte("12345678901234567890")
	want := []string{"755224", "287082", "359152", "969429"}
	for i, w := range want {
		assert.Equal(t, w, HOTP(key, uint64(i)), "counter %d", i)
	}
}

func TestCodeAt_RFC6238(t *testing.T) {
	cases := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, tc := range cases {
		code, err := CodeAt(rfcSecret, time.Unix(tc.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, tc.code, code.Value, "t=%d", tc.unix)
	}
}

func TestCodeAt_SecondsRemaining(t *testing.T) {
	code, err := CodeAt(rfcSecret, time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, code.SecondsRemaining)

	code, err = CodeAt(rfcSecret, time.Unix(60, 0))
	require.NoError(t, err)
	assert.Equal(t, 30, code.SecondsRemaining)
}

func TestDecodeSecret_Lenient(t *testing.T) {
	strict, err := DecodeSecret(rfcSecret)
	require.NoError(t, err)
	assert.Equal(t, []byte("12345678901234567890"), strict)

	loose, err := DecodeSecret(strings.ToLower("gezd gnbv-gy3t qojq gezd gnbv gy3t qojq===="))
	require.NoError(t, err)
	assert.Equal(t, strict, loose)

	_, err = DecodeSecret("!!!! 0189")
	assert.ErrorIs(t, err, failure.ErrMalformedInput)
}

func TestGenerateSecret(t *testing.T) {
	s, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, s, 32)
	assert.NotContains(t, s, "=")

	key, err := DecodeSecret(s)
	require.NoError(t, err)
	assert.Len(t, key, SecretSize)
}

func TestVerifyAt_Window(t *testing.T) {
	at := time.Unix(1111111109, 0)
	code, err := CodeAt(rfcSecret, at)
	require.NoError(t, err)

	for _, skew := range []time.Duration{0, 29 * time.Second, -29 * time.Second} {
		assert.True(t, VerifyAt(rfcSecret, code.Value, at.Add(skew), Window), "skew %s", skew)
	}
	for _, skew := range []time.Duration{61 * time.Second, -61 * time.Second} {
		assert.False(t, VerifyAt(rfcSecret, code.Value, at.Add(skew), Window), "skew %s", skew)
	}
	assert.False(t, VerifyAt(rfcSecret, code.Value, at.Add(31*time.Second), 0))
}

func TestVerifyAt_Rejects(t *testing.T) {
	at := time.Unix(59, 0)
	assert.True(t, VerifyAt(rfcSecret, "287 082", at, Window))
	assert.False(t, VerifyAt(rfcSecret, "28708", at, Window))
	assert.False(t, VerifyAt(rfcSecret, "2870820", at, Window))
	assert.False(t, VerifyAt("!!!!", "287082", at, Window))
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI(rfcSecret, "alice@example.com", "Lock Box")
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/Lock%20Box%3Aalice%40example.com?secret="+rfcSecret+"&issuer=Lock%20Box&algorithm=SHA1&digits=6&period=30"), uri)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, "/Lock Box:alice@example.com", u.Path)
	assert.Equal(t, "Lock Box", u.Query().Get("issuer"))

	assert.Contains(t, ProvisioningURI(rfcSecret, "bob", ""), "issuer="+DefaultIssuer)
	assert.Contains(t, ProvisioningURI(rfcSecret, "a&b+c", "x"), "/x%3Aa%26b%2Bc?")
}

func TestTicker_StopHaltsCallbacks(t *testing.T) {
	var calls atomic.Int32
	tk := NewTicker(rfcSecret, 5*time.Millisecond, func(c Code) {
		assert.Len(t, c.Value, Digits)
		calls.Add(1)
	})
	require.NoError(t, tk.Start(t.Context()))

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	tk.Stop()
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load())

	tk.Stop()
}

func TestTicker_CallbackCancelsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var calls atomic.Int32
	tk := NewTicker(rfcSecret, time.Millisecond, func(Code) {
		calls.Add(1)
		cancel()
	})
	require.NoError(t, tk.Start(ctx))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		tk.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the callback cancelled the ticker")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestTicker_InvalidSecret(t *testing.T) {
	tk := NewTicker("!!!", time.Millisecond, func(Code) { t.Fatal("callback on invalid secret") })
	assert.ErrorIs(t, tk.Start(t.Context()), failure.ErrMalformedInput)
	tk.Stop()
}
