package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const DefaultOTPLength = 6

var ten = big.NewInt(10)

// GenerateOTP returns a string of length uniformly random decimal digits.
// Each digit is drawn independently from crypto/rand; math/rand is not
// acceptable here because the code is a credential.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = DefaultOTPLength
	}
	buf := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("otp generate: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

// HashOTP returns the SHA-256 hex digest of the plaintext code. Unsalted:
// codes are short-lived and bound to a single record, the record is the
// context.
func HashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
