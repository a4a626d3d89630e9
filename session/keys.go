package session

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// MinKeyBits is the smallest modulus GenerateKey accepts.
const MinKeyBits = 1024

// GenerateKey creates a new session signing key. bits must be a multiple
// of 8 so a space padded block always stays below the modulus.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("generate key: %d bits is below the %d bit minimum: %w", bits, MinKeyBits, ErrConfiguration)
	}
	if bits%8 != 0 {
		return nil, fmt.Errorf("generate key: %d bits is not a whole number of bytes: %w", bits, ErrConfiguration)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// LoadPrivateKey reads a PEM encoded RSA private key in PKCS#1 or PKCS#8
// form.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	return ParsePrivateKey(data)
}

// ParsePrivateKey decodes the first PEM block of data.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("parse private key: no PEM block: %w", ErrConfiguration)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w: %w", ErrConfiguration, err)
		}
		return key, nil

	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w: %w", ErrConfiguration, err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("parse private key: %T is not an RSA key: %w", parsed, ErrConfiguration)
		}
		return key, nil

	default:
		return nil, fmt.Errorf("parse private key: unexpected PEM block %q: %w", block.Type, ErrConfiguration)
	}
}

// WritePrivateKey stores key as a PKCS#1 PEM file readable only by the
// owner. An existing file is replaced.
func WritePrivateKey(path string, key *rsa.PrivateKey) error {
	if key == nil {
		return errors.New("write private key: nil key")
	}

	data := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	return nil
}
