// Package adaptive provides adaptive encryption with automatic algorithm selection.
package adaptive

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Errors returned by Seal and Open.
var (
	ErrPassphraseTooWeak = errors.New("adaptive: passphrase too weak (minimum 8 characters)")
	ErrNotSealed         = errors.New("adaptive: data is not a sealed container")
	ErrDecryptionFailed  = errors.New("adaptive: decryption failed - wrong passphrase or corrupted data")
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the Argon2id salt length stored in the container.
	SaltLength = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// Container layout: magic | cipher id | salt | nonce+ciphertext.
// The magic, cipher id and salt are authenticated as additional data.
var magic = []byte("SGSEAL1\n")

var cipherIDs = map[CipherType]byte{
	CipherAESGCM:   1,
	CipherChaCha20: 2,
}

// IsSealed reports whether data starts with the sealed container header.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Seal encrypts plaintext under a key derived from passphrase, using the
// cipher preferred on this machine.
func Seal(passphrase, plaintext []byte) ([]byte, error) {
	return SealWithType(passphrase, plaintext, Preferred())
}

// SealWithType is Seal with an explicit cipher.
func SealWithType(passphrase, plaintext []byte, cipherType CipherType) ([]byte, error) {
	id, ok := cipherIDs[cipherType]
	if !ok {
		return nil, errors.New("adaptive: unknown cipher type: " + string(cipherType))
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("adaptive: generate salt: %w", err)
	}

	c, err := passphraseCipher(passphrase, salt, cipherType)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, len(magic)+1+SaltLength)
	header = append(header, magic...)
	header = append(header, id)
	header = append(header, salt...)

	body, err := c.Encrypt(plaintext, header)
	if err != nil {
		return nil, fmt.Errorf("adaptive: encrypt: %w", err)
	}
	return append(header, body...), nil
}

// Open decrypts a container produced by Seal.
func Open(passphrase, sealed []byte) ([]byte, error) {
	headerLen := len(magic) + 1 + SaltLength
	if !IsSealed(sealed) || len(sealed) < headerLen {
		return nil, ErrNotSealed
	}

	var cipherType CipherType
	for t, id := range cipherIDs {
		if id == sealed[len(magic)] {
			cipherType = t
		}
	}
	if cipherType == "" {
		return nil, fmt.Errorf("adaptive: unknown cipher id %d", sealed[len(magic)])
	}

	header := sealed[:headerLen]
	salt := header[len(magic)+1:]

	c, err := passphraseCipher(passphrase, salt, cipherType)
	if err != nil {
		return nil, err
	}

	plaintext, err := c.Decrypt(sealed[headerLen:], header)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// DeriveKey derives a KeySize key for cipherType from passphrase and salt.
//
// Argon2id stretches the passphrase; HKDF binds the result to the cipher so
// the same passphrase never yields the same key for two algorithms.
func DeriveKey(passphrase, salt []byte, cipherType CipherType) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}

	master := argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, KeySize)
	defer zero(master)

	key := make([]byte, KeySize)
	reader := hkdf.New(sha256.New, master, salt, []byte("sigmesh/"+string(cipherType)))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("adaptive: derive key: %w", err)
	}
	return key, nil
}

func passphraseCipher(passphrase, salt []byte, cipherType CipherType) (Cipher, error) {
	key, err := DeriveKey(passphrase, salt, cipherType)
	if err != nil {
		return nil, err
	}
	defer zero(key)
	return NewWithType(key, cipherType)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
