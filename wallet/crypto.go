package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize         = 16
	keySize          = 32
	pbkdf2Iterations = 100_000
)

var ErrWrongPassword = errors.New("wrong password or corrupted secret")

// EncryptSecret seals secret with a key stretched from password.
// Output is base64(salt | nonce | ciphertext).
func EncryptSecret(secret, password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := append(salt, nonce...)
	out = gcm.Seal(out, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func DecryptSecret(encrypted, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}
	if len(raw) < saltSize {
		return "", ErrWrongPassword
	}
	gcm, err := newGCM(password, raw[:saltSize])
	if err != nil {
		return "", err
	}
	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return "", ErrWrongPassword
	}
	plain, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return "", ErrWrongPassword
	}
	return string(plain), nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
