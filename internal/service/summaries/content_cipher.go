package summaries

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const contentKeyEnv = "SUMMARYAPI_CONTENT_KEY"

var errInvalidCiphertext = errors.New("invalid content ciphertext")

// ContentCipher seals extracted document text before it is written to the database.
type ContentCipher struct {
	aead cipher.AEAD
}

// ContentCipherFromEnv returns nil when no key is configured.
func ContentCipherFromEnv() (*ContentCipher, error) {
	raw := strings.TrimSpace(os.Getenv(contentKeyEnv))
	if raw == "" {
		return nil, nil
	}
	c, err := NewContentCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", contentKeyEnv, err)
	}
	return c, nil
}

// NewContentCipher accepts a 32 byte key, raw or base64 encoded.
func NewContentCipher(rawKey string) (*ContentCipher, error) {
	key, err := decodeKey(rawKey)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &ContentCipher{aead: aead}, nil
}

func decodeKey(raw string) ([]byte, error) {
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length %d, want 32", len(key))
	}
	return key, nil
}

func (c *ContentCipher) Encrypt(plain string) (string, error) {
	if c == nil {
		return plain, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *ContentCipher) Decrypt(input string) (string, error) {
	if c == nil {
		return input, nil
	}
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", errInvalidCiphertext
	}
	ns := c.aead.NonceSize()
	if len(data) < ns {
		return "", errInvalidCiphertext
	}
	plain, err := c.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", errInvalidCiphertext
	}
	return string(plain), nil
}
