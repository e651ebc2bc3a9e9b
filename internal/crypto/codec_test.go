package crypto

import "testing"

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey("0123456789abcdef")
	k2 := DeriveKey("0123456789abcdef")
	if k1 != k2 {
		t.Fatal("DeriveKey should be deterministic for the same password")
	}
}

func TestDeriveKey_DifferentPasswordsDifferentKeys(t *testing.T) {
	k1 := DeriveKey("0123456789abcdef")
	k2 := DeriveKey("fedcba9876543210")
	if k1 == k2 {
		t.Fatal("different passwords must derive different keys")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := DeriveKey("0123456789abcdef")
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	frame, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	got, err := Decrypt(frame, key)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestEncrypt_RandomIVPerFrame(t *testing.T) {
	key := DeriveKey("0123456789abcdef")
	plaintext := []byte("same plaintext")

	f1, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	f2, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if string(f1) == string(f2) {
		t.Fatal("two encryptions of the same plaintext must not produce identical frames")
	}
}

func TestDecrypt_WrongKeyYieldsBadFrame(t *testing.T) {
	key := DeriveKey("0123456789abcdef")
	wrongKey := DeriveKey("fedcba9876543210")

	frame, err := Encrypt([]byte("hello"), key)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	_, err = Decrypt(frame, wrongKey)
	if err == nil {
		t.Fatal("Decrypt() with wrong key should fail")
	}
}

func TestDecrypt_TruncatedFrame(t *testing.T) {
	key := DeriveKey("0123456789abcdef")
	if _, err := Decrypt([]byte{1, 2, 3}, key); err == nil {
		t.Fatal("Decrypt() on a truncated frame should fail")
	}
}

func TestDecrypt_TamperedTag(t *testing.T) {
	key := DeriveKey("0123456789abcdef")
	frame, err := Encrypt([]byte("hello, swim"), key)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	tampered := append([]byte(nil), frame...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := Decrypt(tampered, key); err == nil {
		t.Fatal("Decrypt() with a tampered tag should fail")
	}
}
