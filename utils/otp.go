package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewOTPCode returns a six digit numeric code in [100000, 999999].
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
