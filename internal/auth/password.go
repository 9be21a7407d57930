package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Ident     = "pbkdf2-sha256"
	pbkdf2SaltSize  = 16
	pbkdf2KeySize   = 32
	DefaultHashCost = 29000
)

// adapted base64: standard alphabet with '.' instead of '+', no padding
var hashEncoding = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789./").WithPadding(base64.NoPadding)

// PasswordHasher derives and verifies password hashes in the modular crypt
// format "$pbkdf2-sha256$<rounds>$<salt>$<checksum>".
type PasswordHasher struct {
	Rounds int
}

func NewPasswordHasher() PasswordHasher {
	return PasswordHasher{Rounds: DefaultHashCost}
}

// Hash derives a hash of plaintext using a fresh random salt.
func (h PasswordHasher) Hash(plaintext string) (string, error) {
	rounds := h.Rounds
	if rounds <= 0 {
		rounds = DefaultHashCost
	}

	salt := make([]byte, pbkdf2SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(plaintext), salt, rounds, pbkdf2KeySize, sha256.New)
	return fmt.Sprintf("$%s$%d$%s$%s",
		pbkdf2Ident,
		rounds,
		hashEncoding.EncodeToString(salt),
		hashEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches hash. Malformed hashes never match.
// Legacy bcrypt hashes are accepted as well.
func (h PasswordHasher) Verify(plaintext, hash string) bool {
	if isBcryptHash(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
	}

	// "", ident, rounds, salt, checksum
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != pbkdf2Ident {
		return false
	}
	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds <= 0 {
		return false
	}
	salt, err := hashEncoding.DecodeString(parts[3])
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := hashEncoding.DecodeString(parts[4])
	if err != nil || len(want) == 0 {
		return false
	}

	got := pbkdf2.Key([]byte(plaintext), salt, rounds, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}
