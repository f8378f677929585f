// Package crypto loads the wallet key and signs CLOB auth messages, exchange
// orders, and L2 API requests.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 480_000
	kdfSaltLen    = 16
	sealedVersion = 1
)

// ErrNoKey means neither a raw key nor a sealed key file is configured.
var ErrNoKey = errors.New("crypto: no wallet key configured")

// sealedKey is the on-disk form of a password-protected wallet key.
type sealedKey struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeySource says where the wallet key comes from. A raw key wins over a
// sealed file.
type KeySource struct {
	RawHex     string
	SealedPath string
	Password   string
}

// Configured reports whether any source is set.
func (k KeySource) Configured() bool {
	return k.RawHex != "" || k.SealedPath != ""
}

// Resolve returns the hex private key without 0x prefix.
func (k KeySource) Resolve() (string, error) {
	switch {
	case k.RawHex != "":
		raw := strings.TrimPrefix(k.RawHex, "0x")
		if b, err := hex.DecodeString(raw); err != nil || len(b) != 32 {
			return "", errors.New("crypto: raw wallet key must be 32 bytes of hex")
		}
		return raw, nil
	case k.SealedPath != "":
		data, err := os.ReadFile(k.SealedPath)
		if err != nil {
			return "", fmt.Errorf("crypto: read sealed key: %w", err)
		}
		return OpenKey(data, k.Password)
	default:
		return "", ErrNoKey
	}
}

// SealKey encrypts a hex private key under password (PBKDF2-SHA256, AES-256-GCM).
func SealKey(privateKeyHex, password string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil || len(key) != 32 {
		return nil, errors.New("crypto: wallet key must be 32 bytes of hex")
	}
	salt := make([]byte, kdfSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	aead, err := passwordAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	return json.MarshalIndent(sealedKey{
		Version:    sealedVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, key, nil)),
	}, "", "  ")
}

// OpenKey reverses SealKey.
func OpenKey(data []byte, password string) (string, error) {
	var sk sealedKey
	if err := json.Unmarshal(data, &sk); err != nil {
		return "", fmt.Errorf("crypto: decode sealed key: %w", err)
	}
	if sk.Version != sealedVersion {
		return "", fmt.Errorf("crypto: sealed key version %d not supported", sk.Version)
	}
	var parts [3][]byte
	for i, s := range []string{sk.Salt, sk.Nonce, sk.Ciphertext} {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", fmt.Errorf("crypto: decode sealed key: %w", err)
		}
		parts[i] = b
	}
	aead, err := passwordAEAD(password, parts[0])
	if err != nil {
		return "", err
	}
	if len(parts[1]) != aead.NonceSize() {
		return "", errors.New("crypto: sealed key nonce has wrong length")
	}
	plain, err := aead.Open(nil, parts[1], parts[2], nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open sealed key (wrong password?): %w", err)
	}
	return hex.EncodeToString(plain), nil
}

func passwordAEAD(password string, salt []byte) (cipher.AEAD, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, kdfIterations, 32, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return aead, nil
}
