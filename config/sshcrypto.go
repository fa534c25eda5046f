package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// ErrPassphraseRequired is returned when the SSH key is encrypted and no
// passphrase was supplied.
var ErrPassphraseRequired = errors.New("SSH key is encrypted: passphrase required (set MCPCHAT_SSH_PASSPHRASE)")

// preferredSSHKeys are tried in order by FindSSHKeys. ECDSA keys are left out
// because their signatures are randomized and cannot derive a stable key.
var preferredSSHKeys = []string{"mcpchat_ed25519", "id_ed25519", "id_rsa"}

// LoadSSHSigner parses the private key at path. passphrase is only used when
// the key turns out to be encrypted.
func LoadSSHSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("invalid SSH key %s: %w", path, err)
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt SSH key %s (wrong passphrase?): %w", path, err)
	}
	return signer, nil
}

// FindSSHKeys lists the private keys in ~/.ssh usable for credential
// encryption, most preferred first.
func FindSSHKeys() []string {
	sshDir := filepath.Join(GetHomeDir(), ".ssh")

	var found []string
	for _, name := range preferredSSHKeys {
		path := filepath.Join(sshDir, name)
		if looksLikePrivateKey(path) {
			found = append(found, path)
		}
	}
	return found
}

func looksLikePrivateKey(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Contains(data, []byte("-----BEGIN")) && bytes.Contains(data, []byte("PRIVATE KEY-----"))
}
