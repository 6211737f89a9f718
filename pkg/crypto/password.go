package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes plaintext using bcrypt. A fresh salt is generated per
// call and embedded in the output, so nothing is stored beside the hash.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// VerifyPassword reports whether plaintext matches the stored hash. The
// comparison is constant-time; malformed hashes verify as false rather than
// surfacing an error to callers.
func VerifyPassword(hash []byte, plain string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain)) == nil
}
