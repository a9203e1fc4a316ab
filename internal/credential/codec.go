// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// legacyFixedSalt is the static salt the first panel generation prepended
// to passwords before hashing. Kept only so existing records keep
// verifying; Encode never writes this shape.
const legacyFixedSalt = "palisade-v1:"

// ErrEmptyPassword is returned when attempting to encode an empty password.
var ErrEmptyPassword = oops.Code(CodeInvalidRequest).Errorf("password cannot be empty")

// Scheme identifies the encoding format of a stored password hash.
// The set is closed; supporting another historical format means adding a
// variant here and a case in DetectScheme, nowhere else.
type Scheme int

// Recognized hash schemes.
const (
	// SchemeArgon2id is the canonical encoding. Everything this core
	// writes is argon2id in PHC string format.
	SchemeArgon2id Scheme = iota

	// SchemeBcrypt is the prior-generation salted encoding.
	SchemeBcrypt

	// SchemeLegacySHA256 is the original fixed-salt digest. It has no
	// self-identifying marker, so anything unrecognized lands here.
	SchemeLegacySHA256
)

// String returns the scheme name for logging.
func (s Scheme) String() string {
	switch s {
	case SchemeArgon2id:
		return "argon2id"
	case SchemeBcrypt:
		return "bcrypt"
	case SchemeLegacySHA256:
		return "legacy-sha256"
	}
	return "unknown"
}

// DetectScheme sniffs the encoding format of a stored hash by its prefix.
func DetectScheme(stored string) Scheme {
	switch {
	case strings.HasPrefix(stored, "$argon2id$"):
		return SchemeArgon2id
	case strings.HasPrefix(stored, "$2a$"),
		strings.HasPrefix(stored, "$2b$"),
		strings.HasPrefix(stored, "$2y$"):
		return SchemeBcrypt
	default:
		return SchemeLegacySHA256
	}
}

// Codec verifies plaintext passwords against stored encodings of any
// recognized scheme and produces new encodings in the canonical scheme.
type Codec interface {
	// Verify reports whether the password matches the stored encoding.
	// Malformed input is a mismatch, never an error.
	Verify(stored, password string) bool

	// Encode produces a canonical argon2id encoding of the password.
	Encode(password string) (string, error)

	// IsLegacy reports whether the stored encoding should be re-encoded
	// after the next successful verification.
	IsLegacy(stored string) bool
}

// StandardCodec implements Codec for the three recognized schemes.
type StandardCodec struct{}

// NewStandardCodec creates a StandardCodec.
func NewStandardCodec() *StandardCodec {
	return &StandardCodec{}
}

// Verify reports whether the password matches the stored encoding.
func (c *StandardCodec) Verify(stored, password string) bool {
	switch DetectScheme(stored) {
	case SchemeArgon2id:
		return verifyArgon2id(stored, password)
	case SchemeBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	case SchemeLegacySHA256:
		return verifyLegacySHA256(stored, password)
	}
	return false
}

// Encode produces a canonical argon2id encoding of the password.
func (c *StandardCodec) Encode(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("CRED_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// PHC string format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// IsLegacy reports whether the stored encoding is not canonical.
func (c *StandardCodec) IsLegacy(stored string) bool {
	return DetectScheme(stored) != SchemeArgon2id
}

// verifyArgon2id parses a PHC argon2id string and recomputes the hash.
// Any parse failure is a mismatch.
func verifyArgon2id(encodedHash, password string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	// Reject parameters that would truncate or overflow on conversion.
	if threads > 255 {
		return false
	}
	keyLen := len(expected)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// verifyLegacySHA256 checks the fixed-salt digest the first panel
// generation stored: hex(sha256(salt || password)).
func verifyLegacySHA256(stored, password string) bool {
	sum := sha256.Sum256([]byte(legacyFixedSalt + password))
	computed := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(stored))) == 1
}

// EncodeLegacySHA256 produces a legacy fixed-salt digest. There is no
// production write path for this; it exists so migration tests can mint
// records shaped like the historical data.
func EncodeLegacySHA256(password string) string {
	sum := sha256.Sum256([]byte(legacyFixedSalt + password))
	return hex.EncodeToString(sum[:])
}

// Compile-time interface check.
var _ Codec = (*StandardCodec)(nil)
