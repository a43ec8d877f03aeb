package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HashVersionArgon2id = "argon2id"
	HashVersionBcrypt   = "bcrypt"
	// HashVersionSHA256 is the unsalted hex digest written by the
	// predecessor tool. It is only ever verified, then replaced.
	HashVersionSHA256 = "sha256"
)

// Upper bounds for argon2id parameters read back from a stored digest.
const (
	maxArgon2Memory     = 4 * 1024 * 1024 // KiB
	maxArgon2Iterations = 64
	maxArgon2KeyLength  = 1024
)

var errMalformedDigest = errors.New("malformed password digest")

// Params tune the argon2id cost.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follow the RFC 9106 second recommended option.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher produces argon2id digests in PHC string form. It also verifies
// legacy sha256 and bcrypt digests so they can be upgraded on login.
type Hasher struct {
	params Params
}

func NewHasher(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash returns the digest of password and its hash version.
func (h *Hasher) Hash(password string) (digest string, version string, err error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	digest = fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return digest, HashVersionArgon2id, nil
}

// Verify reports whether password matches digest. A mismatch is not an
// error; err is only set for digests that cannot be parsed.
func (h *Hasher) Verify(digest, version, password string) (bool, error) {
	switch resolveVersion(digest, version) {
	case HashVersionArgon2id:
		return verifyArgon2id(digest, password)
	case HashVersionSHA256:
		return verifySHA256(digest, password)
	case HashVersionBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, fmt.Errorf("unknown hash version %q", version)
	}
}

// NeedsRehash reports whether a digest should be replaced after a
// successful login.
func (h *Hasher) NeedsRehash(digest, version string) bool {
	return resolveVersion(digest, version) != HashVersionArgon2id
}

// resolveVersion fills in the version of records that were stored
// without one.
func resolveVersion(digest, version string) string {
	if version != "" {
		return version
	}
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return HashVersionArgon2id
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return HashVersionBcrypt
	case isSHA256Hex(digest):
		return HashVersionSHA256
	default:
		return HashVersionArgon2id
	}
}

func isSHA256Hex(digest string) bool {
	if len(digest) != hex.EncodedLen(sha256.Size) {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}

func verifySHA256(digest, password string) (bool, error) {
	want, err := hex.DecodeString(strings.ToLower(digest))
	if err != nil || len(want) != sha256.Size {
		return false, errMalformedDigest
	}
	got := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(got[:], want) == 1, nil
}

func verifyArgon2id(digest, password string) (bool, error) {
	// $argon2id$v=19$m=65536,t=3,p=2$salt$key
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errMalformedDigest
	}

	var (
		memory, iterations uint32
		parallelism        uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, errMalformedDigest
	}
	// argon2 panics on p=0 and needs at least 8 KiB per lane
	if parallelism == 0 ||
		iterations == 0 || iterations > maxArgon2Iterations ||
		memory < 8*uint32(parallelism) || memory > maxArgon2Memory {
		return false, errMalformedDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errMalformedDigest
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 || len(want) > maxArgon2KeyLength {
		return false, errMalformedDigest
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
