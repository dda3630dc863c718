package model

import "time"

// Repository is a borg repository location plus the credentials needed to
// operate on it.
type Repository struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Encryption *string   `json:"encryption,omitempty"`
	Passphrase *string   `json:"-"`
	MaxSizeGB  *float64  `json:"max_size_gb,omitempty"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasPassphrase reports whether borg invocations against this repository need
// BORG_PASSPHRASE set.
func (r *Repository) HasPassphrase() bool {
	return r.Encryption != nil && r.Passphrase != nil && *r.Passphrase != ""
}
