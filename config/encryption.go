package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/ssh"
)

// EncryptedPrefix marks a string value produced by EncryptString.
const EncryptedPrefix = "enc:"

// EncryptionMethod defines how data is encrypted
type EncryptionMethod string

const (
	EncryptionNone   EncryptionMethod = "none"
	EncryptionSSHKey EncryptionMethod = "ssh_key"
)

// EncryptionManager encrypts credential files and individual secret values.
// With the SSH key method the AES key is derived from a signature made with
// the user's SSH private key, so no extra key material is stored.
type EncryptionManager struct {
	method     EncryptionMethod
	sshKeyPath string
	passphrase string
	signer     ssh.Signer
	aesKey     []byte
}

// NewEncryptionManager creates a new encryption manager
func NewEncryptionManager(method EncryptionMethod, sshKeyPath string) *EncryptionManager {
	return &EncryptionManager{
		method:     method,
		sshKeyPath: sshKeyPath,
	}
}

// SetPassphrase sets the passphrase for decrypting the SSH key
func (e *EncryptionManager) SetPassphrase(passphrase string) {
	e.passphrase = passphrase
}

// Initialize loads the SSH key and derives the AES key.
func (e *EncryptionManager) Initialize() error {
	switch e.method {
	case EncryptionNone:
		return nil

	case EncryptionSSHKey:
		signer, err := LoadSSHSigner(e.sshKeyPath, e.passphrase)
		if err != nil {
			return err
		}
		return e.initializeWithSigner(signer)

	default:
		return fmt.Errorf("unknown encryption method: %s", e.method)
	}
}

func (e *EncryptionManager) initializeWithSigner(signer ssh.Signer) error {
	aesKey, err := DeriveAESKeyFromSSH(signer)
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}
	e.signer = signer
	e.aesKey = aesKey
	return nil
}

// Encrypt seals plaintext as nonce||ciphertext. With EncryptionNone the
// input is returned as is.
func (e *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	if e.method == EncryptionNone {
		return plaintext, nil
	}
	gcm, err := e.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func (e *EncryptionManager) Decrypt(data []byte) ([]byte, error) {
	if e.method == EncryptionNone {
		return data, nil
	}
	gcm, err := e.aead()
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(data) < n {
		return nil, errors.New("ciphertext too short")
	}
	plaintext, err := gcm.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func (e *EncryptionManager) aead() (cipher.AEAD, error) {
	if e.method != EncryptionSSHKey {
		return nil, fmt.Errorf("unknown encryption method: %s", e.method)
	}
	if e.aesKey == nil {
		return nil, errors.New("encryption manager not initialized")
	}
	block, err := aes.NewCipher(e.aesKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptString returns value as "enc:" + base64 ciphertext. With
// EncryptionNone the value is returned unchanged.
func (e *EncryptionManager) EncryptString(value string) (string, error) {
	if e.method == EncryptionNone || value == "" {
		return value, nil
	}
	ciphertext, err := e.Encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString reverses EncryptString. Values without the prefix are
// returned unchanged.
func (e *EncryptionManager) DecryptString(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if e.method == EncryptionNone {
		return "", fmt.Errorf("encrypted value found but credential_mode is not %q", SecuritySSHKey)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid encrypted value: %w", err)
	}
	plaintext, err := e.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value carries the encrypted prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// DeriveAESKeyFromSSH derives a 32-byte AES-256 key from an SSH key signature.
// Ed25519 and RSA PKCS#1 v1.5 signatures are deterministic, so the same key
// always yields the same AES key. ECDSA signatures are not and cannot be used.
func DeriveAESKeyFromSSH(signer ssh.Signer) ([]byte, error) {
	message := []byte("mcpchat-encryption-key-derivation-v1")

	signature, err := signer.Sign(rand.Reader, message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	hash := sha256.Sum256(signature.Blob)
	return hash[:], nil
}
