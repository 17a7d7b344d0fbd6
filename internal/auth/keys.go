package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// AdminKeyPrefix marks keys produced by NewAdminCredentials.
	AdminKeyPrefix = "vex_"

	adminKeyBytes = 32
	hashCost      = 12
)

// AdminCredentials is a freshly generated admin key and the bcrypt hash to
// configure as ADMIN_API_KEY_HASH.
type AdminCredentials struct {
	Key  string
	Hash string
}

// NewAdminCredentials generates a random admin key and hashes it.
func NewAdminCredentials() (AdminCredentials, error) {
	buf := make([]byte, adminKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return AdminCredentials{}, fmt.Errorf("read random bytes: %w", err)
	}
	key := AdminKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), hashCost)
	if err != nil {
		return AdminCredentials{}, fmt.Errorf("hash admin key: %w", err)
	}
	return AdminCredentials{Key: key, Hash: string(hash)}, nil
}

// MatchHash reports whether token is the key behind a bcrypt hash.
func MatchHash(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// MatchKey compares token with a plain key in constant time.
func MatchKey(token, key string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
}

// BearerToken returns the token of an Authorization header. The "Bearer"
// scheme is optional and case-insensitive; a bare scheme yields "".
func BearerToken(header string) string {
	token := strings.TrimSpace(header)
	if strings.EqualFold(token, "bearer") {
		return ""
	}
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
