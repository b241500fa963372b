// Package user implements the user reconciliation engine for the Katya
// identity platform: a persisted local mirror of provider-asserted
// identity, the sync algorithm that keeps it converged, and the
// request-scoped middleware that guarantees a local row exists for every
// authenticated caller.
//
// The local row's integer id is the value used for all local foreign-key
// references; the provider's subject id is its unique key into the
// provider identity space.
package user

import "time"

// User is the locally persisted mirror of a provider identity. Exactly
// one row exists per distinct SubjectID; ID is locally assigned, stable
// once allocated, and never reused.
//
// Rows are created by the reconciler on first sighting of a subject id
// and mutated only by the reconciler (field drift) or by deactivation
// logic. This package never deletes them.
type User struct {
	ID          int64
	SubjectID   string
	Username    string
	Email       *string
	DisplayName string
	IsActive    bool

	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSyncedAt time.Time
}

// EmailValue returns the email or "" when unset, for logging and
// comparison call sites that want a plain string.
func (u *User) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
