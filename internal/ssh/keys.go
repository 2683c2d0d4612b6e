package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// KeyManager handles the private key used to reach the remote host.
type KeyManager struct {
	privateKeyPath string
}

// NewKeyManager creates a new SSH key manager for the private key at path.
func NewKeyManager(privateKeyPath string) *KeyManager {
	return &KeyManager{privateKeyPath: privateKeyPath}
}

// PrivateKeyPath returns the path to the private key.
func (m *KeyManager) PrivateKeyPath() string { return m.privateKeyPath }

// PublicKeyPath returns the path to the public key.
func (m *KeyManager) PublicKeyPath() string { return m.privateKeyPath + ".pub" }

// KeysExist checks if both private and public keys exist.
func (m *KeyManager) KeysExist() bool {
	_, errPriv := os.Stat(m.PrivateKeyPath())
	_, errPub := os.Stat(m.PublicKeyPath())
	return errPriv == nil && errPub == nil
}

// Inspect returns the metadata of the private key file. It never reads the key.
func (m *KeyManager) Inspect() model.CredentialInfo {
	info := model.CredentialInfo{Path: m.privateKeyPath}

	st, err := os.Stat(m.privateKeyPath)
	if err != nil {
		return info
	}

	info.Exists = true
	info.Regular = st.Mode().IsRegular()
	info.Mode = st.Mode().Perm()
	info.Secure = info.Regular && info.Mode == model.SecureKeyPerm

	return info
}

// GenerateKeys generates a new Ed25519 SSH key pair. It never overwrites an
// existing private key. Returns the public key in authorized_keys format.
func (m *KeyManager) GenerateKeys(comment string) (publicKeyAuthorized string, err error) {
	if _, err := os.Stat(m.PrivateKeyPath()); err == nil {
		return "", fmt.Errorf("private key %s already exists: %w", m.PrivateKeyPath(), fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("could not check private key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.PrivateKeyPath()), 0700); err != nil {
		return "", fmt.Errorf("could not create ssh key directory: %w", err)
	}

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("could not generate ed25519 key: %w", err)
	}

	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return "", fmt.Errorf("could not convert to ssh public key: %w", err)
	}

	privKeyBytes, err := ssh.MarshalPrivateKey(privKey, comment)
	if err != nil {
		return "", fmt.Errorf("could not marshal private key: %w", err)
	}

	privKeyPath := m.PrivateKeyPath()
	if err := os.WriteFile(privKeyPath, pem.EncodeToMemory(privKeyBytes), model.SecureKeyPerm); err != nil {
		return "", fmt.Errorf("could not write private key: %w", err)
	}
	// WriteFile permissions are subject to umask.
	if err := os.Chmod(privKeyPath, model.SecureKeyPerm); err != nil {
		os.Remove(privKeyPath)
		return "", fmt.Errorf("could not set private key permissions: %w", err)
	}

	publicKeyAuthorized = string(ssh.MarshalAuthorizedKey(sshPubKey))
	if comment != "" {
		publicKeyAuthorized = publicKeyAuthorized[:len(publicKeyAuthorized)-1] + " " + comment + "\n"
	}
	if err := os.WriteFile(m.PublicKeyPath(), []byte(publicKeyAuthorized), 0644); err != nil {
		os.Remove(privKeyPath)
		return "", fmt.Errorf("could not write public key: %w", err)
	}

	return publicKeyAuthorized, nil
}

// LoadPrivateKey reads the private key bytes.
func (m *KeyManager) LoadPrivateKey() ([]byte, error) {
	data, err := os.ReadFile(m.PrivateKeyPath())
	if err != nil {
		return nil, fmt.Errorf("could not read private key: %w", err)
	}
	return data, nil
}
