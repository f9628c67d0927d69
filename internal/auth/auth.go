package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptyPassword  = errors.New("password cannot be empty")
	ErrBadPassword    = errors.New("password verification failed")
	ErrNoDigest       = errors.New("no dashboard password digest configured")
	ErrBadCiphertext  = errors.New("encrypted value is malformed")
	ErrPasswordLength = errors.New("password longer than 32 bytes cannot be used as a key")
)

// Digest returns the lowercase hex SHA-512 of password.
func Digest(password string) string {
	sum := sha512.Sum512([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Gate checks entered passwords against a stored SHA-512 hex digest.
type Gate struct {
	digest []byte
}

func NewGate(hexDigest string) *Gate {
	return &Gate{digest: []byte(strings.ToLower(strings.TrimSpace(hexDigest)))}
}

// Verify never touches the mailbox; an empty password is rejected first.
func (g *Gate) Verify(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(g.digest) == 0 {
		return ErrNoDigest
	}
	if subtle.ConstantTimeCompare([]byte(Digest(password)), g.digest) != 1 {
		return ErrBadPassword
	}
	return nil
}

// key zero-pads the password to the next AES key size.
func key(password string) ([]byte, error) {
	b := []byte(password)
	switch {
	case len(b) <= 16:
		return append(b, make([]byte, 16-len(b))...), nil
	case len(b) <= 24:
		return append(b, make([]byte, 24-len(b))...), nil
	case len(b) <= 32:
		return append(b, make([]byte, 32-len(b))...), nil
	default:
		return nil, ErrPasswordLength
	}
}

// Encrypt produces base64(IV || AES-CBC(PKCS#7(plaintext))).
func Encrypt(password, plaintext string) (string, error) {
	k, err := key(password)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return "", err
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. The value may be base64 or hex encoded.
func Decrypt(password, encoded string) (string, error) {
	raw, err := decode(strings.TrimSpace(encoded))
	if err != nil {
		return "", err
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", ErrBadCiphertext
	}

	k, err := key(password)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return "", err
	}

	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func decode(s string) ([]byte, error) {
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, ErrBadCiphertext
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad fails on inconsistent padding, which is also what a wrong key produces.
func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrBadCiphertext
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrBadPassword
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrBadPassword
		}
	}
	return b[:len(b)-n], nil
}
