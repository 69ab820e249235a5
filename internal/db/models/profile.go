// Package models - profile.go defines the read-only Profile owned by the identity subsystem.
package models

// Profile is a person known to the identity subsystem. clubroom never writes profiles.
type Profile struct {
	ID    string  `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Email string  `db:"email" json:"email"`
	Phone *string `db:"phone" json:"phone"`
}
