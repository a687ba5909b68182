package rotation

import (
	"crypto/rand"
	"fmt"
	"math/big"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
)

// DefaultLength is the length of generated secrets
const DefaultLength = 16

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePassword returns a random secret of length characters drawn from [A-Za-z0-9].
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", opserrors.InputError("password length must be positive, got %d", length)
	}

	limit := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}
