package auth

import "golang.org/x/crypto/bcrypt"

// HashSystemKey hashes a system key for AUTH_SYSTEM_KEY_HASH.
func HashSystemKey(key string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareSystemKey verifies a presented key against its hash.
func CompareSystemKey(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
