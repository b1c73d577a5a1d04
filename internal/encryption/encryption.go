// Package encryption seals custodial wallet keys at rest with age X25519.
// Ciphertext is base64 so it can live in a string document field.
package encryption

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"github.com/ethereum/go-ethereum/crypto"
)

type Service interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
	// DecryptPrivateKey opens a sealed hex private key.
	DecryptPrivateKey(ciphertext string) (*ecdsa.PrivateKey, error)
}

type ageService struct {
	identity *age.X25519Identity
}

// NewService parses an AGE-SECRET-KEY-1... identity.
func NewService(identity string) (Service, error) {
	parsed, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to parse age identity: %w", err)
	}
	return &ageService{identity: parsed}, nil
}

// GenerateIdentity returns a new identity string and its public recipient.
func GenerateIdentity() (identity string, recipient string, err error) {
	generated, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate age identity: %w", err)
	}
	return generated.String(), generated.Recipient().String(), nil
}

func (s *ageService) Encrypt(plaintext []byte) (string, error) {
	var buf bytes.Buffer
	writer, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("failed to create encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("failed to write plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *ageService) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read plaintext: %w", err)
	}
	return plaintext, nil
}

func (s *ageService) DecryptPrivateKey(ciphertext string) (*ecdsa.PrivateKey, error) {
	plaintext, err := s.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	defer clear(plaintext)

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(plaintext)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse decrypted private key: %w", err)
	}
	return key, nil
}
