// internal/crypto/crypto.go (AES-CBC, password-derived key)
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
)

const (
	keyLength = 32 // AES-256
	ivLength  = aes.BlockSize

	// scrypt parameters matching the legacy deployment. The salt is fixed so
	// that ciphertexts written before this rewrite stay decryptable; see the
	// backward-compatibility note in DESIGN.md before changing it.
	scryptN = 16384
	scryptR = 8
	scryptP = 1
	keySalt = "salt"
)

// ErrDecrypt is returned for every decryption failure: wrong password,
// malformed or mismatched IV, or corrupted ciphertext. Callers must not
// distinguish between these cases.
var ErrDecrypt = errors.New("decryption failed")

// GenerateID returns a short URL-safe identifier for a message. The space is
// a full UUID (122 random bits), so collisions are negligible, but the store
// still enforces uniqueness.
func GenerateID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// EncryptText encrypts plaintext under a key derived from password and
// returns the hex-encoded IV and ciphertext. A fresh random IV is generated
// on every call, so encrypting the same input twice yields different output.
func EncryptText(plaintext, password string) (iv, ciphertext string, err error) {
	key, err := deriveKey(password)
	if err != nil {
		return "", "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", fmt.Errorf("cipher creation failed: %w", err)
	}

	rawIV := make([]byte, ivLength)
	if _, err := rand.Read(rawIV); err != nil {
		return "", "", fmt.Errorf("iv generation failed: %w", err)
	}

	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, rawIV).CryptBlocks(out, padded)

	return hex.EncodeToString(rawIV), hex.EncodeToString(out), nil
}

// DecryptText reverses EncryptText. Any malformed input or padding failure is
// reported as ErrDecrypt; no partial plaintext is ever returned.
func DecryptText(ciphertext, iv, password string) (string, error) {
	rawIV, err := hex.DecodeString(iv)
	if err != nil || len(rawIV) != ivLength {
		return "", ErrDecrypt
	}

	raw, err := hex.DecodeString(ciphertext)
	if err != nil || len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", ErrDecrypt
	}

	key, err := deriveKey(password)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("cipher creation failed: %w", err)
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, rawIV).CryptBlocks(out, raw)

	plaintext, ok := unpad(out)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

func deriveKey(password string) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(keySalt), scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	return key, nil
}

// PKCS#7 padding.

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
