package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// GenerateOTP returns a random numeric code of the given length.
func GenerateOTP(length int) string {
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic(err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String()
}

// MaskEmail hides most of the local part: "someone@example.com" becomes
// "so*****@example.com". Used when showing applicant emails to managers.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return email
	}
	local := email[:at]
	keep := len(local) / 3
	if keep < 1 {
		keep = 1
	}
	if keep > len(local) {
		keep = len(local)
	}
	return local[:keep] + strings.Repeat("*", len(local)-keep) + email[at:]
}
