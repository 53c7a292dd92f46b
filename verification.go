package accounts

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/goliatone/go-errors"
)

// verificationTokenBytes is the entropy backing a verification token.
// 32 bytes keeps collisions out of the realm of the practical; the token
// is a one-time capability, not a lookup key with structure.
const verificationTokenBytes = 32

// NewVerificationToken produces a random one-time token, hex encoded.
func NewVerificationToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to read entropy for verification token")
	}
	return hex.EncodeToString(buf), nil
}
