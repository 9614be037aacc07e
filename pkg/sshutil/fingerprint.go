package sshutil

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// GetFingerprint returns the SHA256 fingerprint of a public key in
// authorized_keys format
func GetFingerprint(pubkeyStr string) (string, error) {
	pubkey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(pubkeyStr))
	if err != nil {
		return "", fmt.Errorf("failed to parse public key: %w", err)
	}
	return ssh.FingerprintSHA256(pubkey), nil
}
