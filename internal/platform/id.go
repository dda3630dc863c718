package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const nameLength = 10

// NewID returns the primary-key identifier for a new row.
func NewID() string {
	return uuid.New().String()
}

// NewName returns a short random name with the given type prefix, used for
// resources created without an explicit name (API keys).
func NewName(prefix string) string {
	b := make([]byte, nameLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = nameAlphabet[b[i]%byte(len(nameAlphabet))]
	}
	return prefix + string(b)
}
