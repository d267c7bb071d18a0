package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"UserService/internal/domain"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// bcrypt ignores everything past 72 bytes; newer x/crypto refuses it outright.
const bcryptMaxPasswordBytes = 72

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32

	argon2MaxMemory = 1 << 22
)

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches digest. Malformed digests never match.
	Verify(password, digest string) bool
	// NeedsRehash reports whether digest was produced with other parameters.
	NeedsRehash(digest string) bool
}

// Hasher implements PasswordHasher with bcrypt or argon2id. Verification
// understands both formats regardless of the configured algorithm.
type Hasher struct {
	algorithm  string
	bcryptCost int
}

// NewHasher returns a hasher for the given algorithm. Unknown algorithms and
// out-of-range costs fall back to bcrypt with bcrypt.DefaultCost.
func NewHasher(algorithm string, bcryptCost int) *Hasher {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if algorithm != AlgorithmArgon2id {
		algorithm = AlgorithmBcrypt
	}
	return &Hasher{algorithm: algorithm, bcryptCost: bcryptCost}
}

// Hash returns a salted digest of password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password cannot be empty", domain.ErrValidation)
	}
	if h.algorithm == AlgorithmArgon2id {
		return hashArgon2id(password)
	}
	if len(password) > bcryptMaxPasswordBytes {
		return "", fmt.Errorf("%w: password must be at most %d bytes", domain.ErrValidation, bcryptMaxPasswordBytes)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", AlgorithmBcrypt).Wrap(err)
	}
	return string(b), nil
}

func (h *Hasher) Verify(password, digest string) bool {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return verifyArgon2id(password, digest)
	case isBcrypt(digest):
		// bcrypt would compare only the first 72 bytes.
		if len(password) > bcryptMaxPasswordBytes {
			return false
		}
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	default:
		return false
	}
}

func (h *Hasher) NeedsRehash(digest string) bool {
	if h.algorithm == AlgorithmArgon2id {
		return !strings.HasPrefix(digest, "$argon2id$")
	}
	if !isBcrypt(digest) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(digest))
	return err != nil || cost != h.bcryptCost
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

// hashArgon2id encodes as $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>.
func hashArgon2id(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyArgon2id(password, digest string) bool {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	if threads == 0 || threads > 255 || iterations == 0 || memory == 0 || memory > argon2MaxMemory {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 || len(want) > 1024 {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
