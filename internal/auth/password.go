package auth

import "golang.org/x/crypto/bcrypt"

// HashKey hashes the admin API key for storage in ADMIN_KEY_HASH.
func HashKey(k string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(k), bcrypt.DefaultCost)
	return string(b), err
}

// VerifyKey compares a presented admin key against the configured hash.
func VerifyKey(plain, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
