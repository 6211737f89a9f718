package domain

import "time"

// User represents a registered account. Email is the login handle and is
// unique across all users; PasswordHash is the bcrypt output with its salt
// embedded, never the plaintext.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}
