package identity

import (
	"context"
	"errors"
	"time"
)

// ErrRotationConflict is returned by Rotate when the presented token was
// revoked by a concurrent rotation after it was read.
var ErrRotationConflict = errors.New("refresh token already rotated")

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	// Upsert creates a guest with id or refreshes the username of an
	// existing user, returning the stored row.
	Upsert(ctx context.Context, id int64, username *string) (*User, error)
	// Verify writes the profile and promotes the user to role "user" in one
	// statement.
	Verify(ctx context.Context, id int64, in VerifyInput) (*User, error)
	UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) (*User, error)
	SetRole(ctx context.Context, id int64, role string) (*User, error)
}

type RefreshTokenRepository interface {
	GetByToken(ctx context.Context, hash string) (*RefreshToken, error)
	// CreateAndRevokeAllForUser revokes every active token of the user and
	// stores hash as the only active one.
	CreateAndRevokeAllForUser(ctx context.Context, hash string, userID int64, expiresAt time.Time) error
	// Rotate stores newHash and revokes oldHash. It fails with
	// ErrRotationConflict if oldHash is no longer active.
	Rotate(ctx context.Context, oldHash, newHash string, userID int64, expiresAt time.Time) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
