package passwords

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Algorithm is the hash identifier stored as the first field.
	Algorithm = "pbkdf2_sha256"
	// DefaultIterations matches the web backend's current work factor.
	DefaultIterations = 1_000_000
	// TokenBytes is the entropy of a generated password.
	TokenBytes = 6

	saltChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	saltLength = 22
	keyLength  = sha256.Size
)

var ErrMalformedHash = errors.New("malformed password hash")

// Generate returns a URL-safe password carrying [TokenBytes] bytes of entropy (8 characters, no padding).
func Generate() (string, error) {
	return Token(TokenBytes)
}

// Token returns n random bytes encoded as unpadded URL-safe base64.
func Token(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hasher produces and checks pbkdf2_sha256 hashes.
type Hasher struct {
	Iterations int
}

// NewHasher returns a [Hasher] with [DefaultIterations].
func NewHasher() *Hasher {
	return &Hasher{Iterations: DefaultIterations}
}

// Hash derives an encoded hash for password with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt, err := randomSalt()
	if err != nil {
		return "", err
	}
	return h.encode(password, salt, h.iterations()), nil
}

// Verify reports whether password matches encoded.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != Algorithm {
		return false, ErrMalformedHash
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return false, fmt.Errorf("%w: iterations %q", ErrMalformedHash, parts[1])
	}

	candidate := h.encode(password, parts[2], iterations)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(encoded)) == 1, nil
}

func (h *Hasher) iterations() int {
	if h == nil || h.Iterations < 1 {
		return DefaultIterations
	}
	return h.Iterations
}

func (h *Hasher) encode(password, salt string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s", Algorithm, iterations, salt, base64.StdEncoding.EncodeToString(key))
}

func randomSalt() (string, error) {
	buf := make([]byte, saltLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}
	for i, b := range buf {
		buf[i] = saltChars[int(b)%len(saltChars)]
	}
	return string(buf), nil
}
