package ca

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/adamscao/sshrecord/internal/config"
)

// KeyPair represents a CA key pair
type KeyPair struct {
	signer  ssh.Signer
	KeyType string
}

// LoadOrGenerateKeyPair loads the CA key named in cfg, generating and
// persisting a new one when the private key file does not exist yet
func LoadOrGenerateKeyPair(cfg config.CAConfig) (*KeyPair, error) {
	if _, err := os.Stat(cfg.PrivateKeyPath); err == nil {
		return loadKeyPair(cfg.PrivateKeyPath)
	}
	return generateKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.KeyType)
}

// NewKeyPair wraps an existing crypto.Signer, used when the key is held elsewhere
func NewKeyPair(key crypto.Signer) (*KeyPair, error) {
	signer, err := ssh.NewSignerFromSigner(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH signer: %w", err)
	}
	return &KeyPair{signer: signer, KeyType: signer.PublicKey().Type()}, nil
}

func loadKeyPair(privatePath string) (*KeyPair, error) {
	privateBytes, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(privateBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &KeyPair{signer: signer, KeyType: signer.PublicKey().Type()}, nil
}

func generateKeyPair(privatePath, publicPath, keyType string) (*KeyPair, error) {
	var key crypto.Signer

	switch keyType {
	case "ed25519":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		key = priv
	case "rsa":
		priv, err := rsa.GenerateKey(rand.Reader, 4096)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		key = priv
	default:
		return nil, fmt.Errorf("unsupported key type: %s", keyType)
	}

	kp, err := NewKeyPair(key)
	if err != nil {
		return nil, err
	}
	if err := saveKeyPair(key, kp.PublicKey(), privatePath, publicPath); err != nil {
		return nil, fmt.Errorf("failed to save key pair: %w", err)
	}
	return kp, nil
}

func saveKeyPair(key crypto.Signer, pub ssh.PublicKey, privatePath, publicPath string) error {
	for _, dir := range []string{filepath.Dir(privatePath), filepath.Dir(publicPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
	}

	block, err := ssh.MarshalPrivateKey(key, "")
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(privatePath, pem.EncodeToMemory(block), 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	if err := os.WriteFile(publicPath, ssh.MarshalAuthorizedKey(pub), 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

// PublicKey returns the CA public key
func (kp *KeyPair) PublicKey() ssh.PublicKey {
	return kp.signer.PublicKey()
}

// GetPublicKeyString returns the public key in authorized_keys format
func (kp *KeyPair) GetPublicKeyString() string {
	return string(ssh.MarshalAuthorizedKey(kp.signer.PublicKey()))
}
