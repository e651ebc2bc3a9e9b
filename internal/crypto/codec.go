// Package crypto implements C1: key derivation and AES-GCM frame
// encryption for the gossip transport. These are part of the protocol
// core because they define the wire format (§4.1).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/coreswim/swim/internal/domain"
)

// fixedSalt is the cluster-wide KDF salt (§4.1). It is intentionally
// constant: the cluster password, not the salt, is the secret that gives
// this derivation its strength, and a shared salt lets every node in the
// cluster derive the same key from the same password without a side
// channel.
const fixedSalt = "org.rssys.password.salt.string!!"

const (
	pbkdf2Iterations = 10000
	keyLenBytes      = 32 // 256-bit AES key
	nonceSize        = 12 // GCM standard nonce size
	tagSize          = 16 // 128-bit auth tag
)

// DeriveKey derives a 256-bit AES key from a cluster password via
// PBKDF2-HMAC-SHA256 with the fixed cluster salt and 10,000 iterations.
func DeriveKey(password string) [32]byte {
	derived := pbkdf2.Key([]byte(password), []byte(fixedSalt), pbkdf2Iterations, keyLenBytes, sha256.New)
	var key [32]byte
	copy(key[:], derived)
	return key
}

// Encrypt seals plaintext into a frame: iv(12) || ciphertext || tag(16).
// A fresh random IV is drawn for every call.
func Encrypt(plaintext []byte, key [32]byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	iv := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	frame := make([]byte, 0, len(iv)+len(sealed))
	frame = append(frame, iv...)
	frame = append(frame, sealed...)
	return frame, nil
}

// Decrypt opens a frame produced by Encrypt. Any failure — truncated
// frame, wrong key, corrupted tag — is reported as domain.ErrBadFrame so
// the receive loop can drop the frame and keep running (§7).
func Decrypt(frame []byte, key [32]byte) ([]byte, error) {
	if len(frame) < nonceSize+tagSize {
		return nil, fmt.Errorf("%w: frame too short", domain.ErrBadFrame)
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadFrame, err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadFrame, err)
	}

	iv := frame[:nonceSize]
	ciphertext := frame[nonceSize:]

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", domain.ErrBadFrame)
	}
	return plaintext, nil
}
