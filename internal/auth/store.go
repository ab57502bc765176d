package auth

import (
	"context"
	"time"
)

// UserStore describes the persistence operations the auth core requires.
// Every mutation is single-record and atomic; implementations return
// ErrNotFound when the target record does not exist (including updates
// that affect zero rows) and ErrConflict on uniqueness violations.
type UserStore interface {
	Insert(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	// FindByStudentCode matches the login code exactly, case-insensitively.
	FindByStudentCode(ctx context.Context, code string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByRefreshToken(ctx context.Context, token string) (*User, error)
	FindByResetToken(ctx context.Context, token string) (*User, error)
	FindByGoogleUID(ctx context.Context, uid string) (*User, error)
	List(ctx context.Context) ([]*User, error)

	// RecordSignIn stores the freshly issued refresh token and the sign-in
	// timestamp in one write. The single-slot overwrite is the refresh
	// revocation mechanism.
	RecordSignIn(ctx context.Context, id, refreshToken string, at time.Time) error
	ClearRefreshToken(ctx context.Context, id string) error

	// SetTFASecret stores a new shared secret and resets enabled to false;
	// enablement happens only through SetTFAEnabled after verification.
	SetTFASecret(ctx context.Context, id, secret string) error
	// SetTFAEnabled flips the enabled flag; disabling also clears the secret.
	SetTFAEnabled(ctx context.Context, id string, enabled bool) error

	// SetMetadata binds (or, with nil, unbinds) the federated identity.
	SetMetadata(ctx context.Context, id string, md *GoogleIdentity) error

	SetResetToken(ctx context.Context, id, resetToken string) error
	// ResetPasswordByToken stores the new hash and clears the reset token in
	// one write, keyed by the exact stored token value.
	ResetPasswordByToken(ctx context.Context, resetToken, passwordHash string) error

	Update(ctx context.Context, id string, upd UserUpdate) error
	Delete(ctx context.Context, id string) error
}

// UserUpdate is a partial profile update used by the admin operations.
// Nil fields are left untouched.
type UserUpdate struct {
	Email    *string
	FullName *string
	GroupID  *string
	Password *string // plaintext; hashed by the service before storage
}
