package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters, OWASP baseline. Stored hashes embed the parameters
// they were produced with, so these can be raised without invalidating old
// credentials.
const (
	argonMemory      uint32 = 64 * 1024
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonSaltLength         = 16
	argonKeyLength   uint32 = 32
)

var ErrPasswordMismatch = errors.New("password mismatch")

// HashPassword derives an argon2id hash and returns it in PHC string format:
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "generate salt")
	}

	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword recomputes the hash with the parameters stored in the PHC
// string and compares in constant time. Returns ErrPasswordMismatch on a
// wrong password, other errors only for malformed stored hashes.
func VerifyPassword(encodedHash, password string) error {
	memory, iterations, parallelism, salt, hash, err := decodePHC(encodedHash)
	if err != nil {
		return err
	}

	candidate := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(hash)))
	if subtle.ConstantTimeCompare(hash, candidate) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

func decodePHC(encodedHash string) (memory, iterations uint32, parallelism uint8, salt, hash []byte, err error) {
	vals := strings.Split(encodedHash, "$")
	if len(vals) != 6 || vals[1] != "argon2id" {
		err = errors.New("malformed password hash")
		return
	}

	var version int
	if _, err = fmt.Sscanf(vals[2], "v=%d", &version); err != nil {
		return
	}
	if version != argon2.Version {
		err = errors.Errorf("unsupported argon2 version %d", version)
		return
	}

	if _, err = fmt.Sscanf(vals[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return
	}

	if salt, err = base64.RawStdEncoding.DecodeString(vals[4]); err != nil {
		return
	}
	hash, err = base64.RawStdEncoding.DecodeString(vals[5])
	return
}
