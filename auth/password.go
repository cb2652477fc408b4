package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes account passwords and competition access passwords.
// Plaintext is never stored or logged anywhere in this service.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
// A mismatch is a plain false, not an error — callers decide how to surface it.
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
