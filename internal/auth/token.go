package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// HashToken hashes a bearer token so comparisons never touch the raw value
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(hash[:])
}

// VerifyToken compares a presented token with the expected one in constant time
func VerifyToken(presented, expected string) bool {
	if presented == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(presented)), []byte(HashToken(expected))) == 1
}
