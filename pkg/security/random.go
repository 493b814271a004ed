package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifyCodeBytes yields a six character hex code.
const VerifyCodeBytes = 3

// RandomHex returns 2*n lowercase hex characters drawn from crypto/rand.
func RandomHex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateVerifyCode produces the short code mailed for email verification and password reset.
func GenerateVerifyCode() (string, error) {
	code, err := RandomHex(VerifyCodeBytes)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(code), nil
}
