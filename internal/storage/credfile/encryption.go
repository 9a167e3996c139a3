package credfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/yndnr/sigmesh/pkg/crypto/adaptive"
)

// Encryption is how the credential file is protected at rest.
type Encryption string

// Supported encryption modes.
const (
	EncryptionNone Encryption = "none"
	EncryptionAEAD Encryption = "aead"
	EncryptionAge  Encryption = "age"
)

// ParseEncryption parses an encryption mode. Empty means none.
func ParseEncryption(s string) (Encryption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return EncryptionNone, nil
	case "aead":
		return EncryptionAEAD, nil
	case "age":
		return EncryptionAge, nil
	default:
		return "", fmt.Errorf("credfile: unsupported encryption %q", s)
	}
}

// ErrMissingKey is returned when the selected encryption has no key material.
var ErrMissingKey = errors.New("credfile: missing key material for encryption")

// Keys holds the key material for reading or writing an encrypted file.
type Keys struct {
	// Passphrase seals and opens aead files.
	Passphrase []byte

	// Identities decrypt age files.
	Identities []age.Identity

	// Recipients are the age public keys a file is encrypted to.
	Recipients []age.Recipient
}

// Decrypt returns the plaintext of data protected with mode.
func Decrypt(data []byte, mode Encryption, keys Keys) ([]byte, error) {
	switch mode {
	case EncryptionNone, "":
		if adaptive.IsSealed(data) {
			return nil, errors.New("credfile: file is sealed but encryption is none")
		}
		return data, nil
	case EncryptionAEAD:
		if len(keys.Passphrase) == 0 {
			return nil, ErrMissingKey
		}
		plaintext, err := adaptive.Open(keys.Passphrase, data)
		if err != nil {
			return nil, fmt.Errorf("credfile: %w", err)
		}
		return plaintext, nil
	case EncryptionAge:
		if len(keys.Identities) == 0 {
			return nil, ErrMissingKey
		}
		reader, err := age.Decrypt(bytes.NewReader(data), keys.Identities...)
		if err != nil {
			return nil, fmt.Errorf("credfile: age decrypt: %w", err)
		}
		plaintext, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("credfile: age read: %w", err)
		}
		return plaintext, nil
	default:
		return nil, fmt.Errorf("credfile: unsupported encryption %q", mode)
	}
}

// Encrypt protects plaintext with mode.
func Encrypt(plaintext []byte, mode Encryption, keys Keys) ([]byte, error) {
	switch mode {
	case EncryptionNone, "":
		return plaintext, nil
	case EncryptionAEAD:
		if len(keys.Passphrase) == 0 {
			return nil, ErrMissingKey
		}
		sealed, err := adaptive.Seal(keys.Passphrase, plaintext)
		if err != nil {
			return nil, fmt.Errorf("credfile: %w", err)
		}
		return sealed, nil
	case EncryptionAge:
		if len(keys.Recipients) == 0 {
			return nil, ErrMissingKey
		}
		var buf bytes.Buffer
		writer, err := age.Encrypt(&buf, keys.Recipients...)
		if err != nil {
			return nil, fmt.Errorf("credfile: age encrypt: %w", err)
		}
		if _, err := writer.Write(plaintext); err != nil {
			return nil, fmt.Errorf("credfile: age write: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("credfile: age finalize: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("credfile: unsupported encryption %q", mode)
	}
}

// ReadIdentityFile parses the age identities stored in path.
func ReadIdentityFile(path string) ([]age.Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("credfile: open identity file: %w", err)
	}
	defer f.Close()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("credfile: parse identity file: %w", err)
	}
	return ids, nil
}

// ParseRecipients parses age public keys (age1... format).
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		r, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("credfile: parse recipient %q: %w", key, err)
		}
		recipients = append(recipients, r)
	}
	return recipients, nil
}

// GenerateIdentity creates a new age X25519 identity. It returns the secret
// key (AGE-SECRET-KEY-1...) and its public recipient (age1...).
func GenerateIdentity() (identity, recipient string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("credfile: generate identity: %w", err)
	}
	return id.String(), id.Recipient().String(), nil
}
