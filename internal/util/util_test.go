package util

import (
	"bytes"
	"testing"
)

func TestAESGCM(t *testing.T) {
	key, err := RandomBytes(AESKeySize)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	plainText := []byte("hello world")

	t.Run("SealOpen", func(t *testing.T) {
		sealed, err := SealAESGCM(plainText, key)
		if err != nil {
			t.Fatalf("SealAESGCM failed: %v", err)
		}
		if len(sealed) != GCMNonceSize+len(plainText)+GCMTagSize {
			t.Errorf("unexpected sealed length %d", len(sealed))
		}

		opened, err := OpenAESGCM(sealed, key)
		if err != nil {
			t.Fatalf("OpenAESGCM failed: %v", err)
		}
		if !bytes.Equal(plainText, opened) {
			t.Errorf("expected %s, got %s", plainText, opened)
		}
	})

	t.Run("FreshNonce", func(t *testing.T) {
		a, _ := SealAESGCM(plainText, key)
		b, _ := SealAESGCM(plainText, key)
		if bytes.Equal(a[:GCMNonceSize], b[:GCMNonceSize]) {
			t.Error("expected distinct nonces for consecutive seals")
		}
	})

	t.Run("TamperCipherText", func(t *testing.T) {
		sealed, _ := SealAESGCM(plainText, key)
		sealed[len(sealed)-1] ^= 0xFF
		if _, err := OpenAESGCM(sealed, key); err == nil {
			t.Error("expected error with tampered ciphertext, got nil")
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		sealed, _ := SealAESGCM(plainText, key)
		if _, err := OpenAESGCM(sealed[:GCMNonceSize+GCMTagSize-1], key); err == nil {
			t.Error("expected error with truncated input, got nil")
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		if _, err := SealAESGCM(plainText, []byte("too short")); err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})
}

func TestPBKDF2(t *testing.T) {
	params := DefaultPBKDF2Params()
	params.Iterations = 1000 // speed up test
	salt := bytes.Repeat([]byte{0x42}, params.SaltLen)

	k1, err := DerivePBKDF2Key([]byte("correct horse battery staple"), salt, params)
	if err != nil {
		t.Fatalf("DerivePBKDF2Key failed: %v", err)
	}
	if len(k1) != AESKeySize {
		t.Errorf("expected key length %d, got %d", AESKeySize, len(k1))
	}

	k2, _ := DerivePBKDF2Key([]byte("correct horse battery staple"), salt, params)
	if !bytes.Equal(k1, k2) {
		t.Error("PBKDF2 should be deterministic")
	}

	k3, _ := DerivePBKDF2Key([]byte("correct horse battery stapler"), salt, params)
	if bytes.Equal(k1, k3) {
		t.Error("PBKDF2 should produce different output for different passphrases")
	}

	if _, err := DerivePBKDF2Key([]byte("x"), salt[:8], params); err == nil {
		t.Error("expected error for short salt")
	}
}

func TestDefaultPBKDF2Params(t *testing.T) {
	p := DefaultPBKDF2Params()
	if p.Iterations != 100_000 || p.KeyLen != 32 || p.SaltLen != 16 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestDigests(t *testing.T) {
	// SHA-256("abc") and SHA-1("abc") from FIPS 180-2.
	if got := SHA256Hex([]byte("abc")); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("SHA256Hex mismatch: %s", got)
	}
	if got := SHA1HexUpper([]byte("abc")); got != "A9993E364706816ABA3E25717850C26C9CD0D89D" {
		t.Errorf("SHA1HexUpper mismatch: %s", got)
	}
}

func TestRandomString(t *testing.T) {
	alphabet := []rune("ab")
	s, err := RandomString(alphabet, 64)
	if err != nil {
		t.Fatalf("RandomString failed: %v", err)
	}
	if len(s) != 64 {
		t.Errorf("expected 64 chars, got %d", len(s))
	}
	for _, r := range s {
		if r != 'a' && r != 'b' {
			t.Fatalf("unexpected rune %q", r)
		}
	}
	if _, err := RandomString(nil, 4); err == nil {
		t.Error("expected error for empty alphabet")
	}
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeBytes(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("expected zeroed slice, got %v", b)
	}
}
