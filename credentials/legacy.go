package credentials

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only consumes the first 72 bytes of its input
const bcryptMaxInput = 72

var legacyPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// isLegacyHash reports whether hash was produced by the previous bcrypt scheme
func isLegacyHash(hash string) bool {
	for _, prefix := range legacyPrefixes {
		if strings.HasPrefix(hash, prefix) {
			return true
		}
	}
	return false
}

// verifyLegacy checks rows written before the Argon2id scheme, which stored
// bcrypt(password + salt) truncated at bcrypt's input limit.
func verifyLegacy(password, salt, hash string) bool {
	input := []byte(password + salt)
	if len(input) > bcryptMaxInput {
		input = input[:bcryptMaxInput]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), input) == nil
}
