package identity

import (
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// User is an account keyed by its Telegram id. Profile fields stay empty
// until the user verifies.
type User struct {
	ID         int64       `json:"id"`
	Username   *string     `json:"username"`
	FirstName  *string     `json:"first_name"`
	Surname    *string     `json:"surname"`
	MiddleName *string     `json:"middle_name"`
	Phone      *string     `json:"phone"`
	Email      *string     `json:"email"`
	BirthDate  pgtype.Date `json:"birth_date"`
	Gender     *string     `json:"gender"`
	Role       string      `json:"role"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// UsernameOrEmpty returns the Telegram username, or "" when the account has
// none.
func (u *User) UsernameOrEmpty() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

// VerifyInput carries the profile a guest submits to become a user. Every
// field is required.
type VerifyInput struct {
	FirstName  string      `json:"first_name"`
	Surname    string      `json:"surname"`
	MiddleName string      `json:"middle_name"`
	Phone      string      `json:"phone"`
	Email      string      `json:"email"`
	BirthDate  pgtype.Date `json:"birth_date"`
	Gender     string      `json:"gender"`
}

func (in *VerifyInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.Surname = strings.TrimSpace(in.Surname)
	in.MiddleName = strings.TrimSpace(in.MiddleName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.Gender = strings.TrimSpace(in.Gender)
}

func (in VerifyInput) Validate() error {
	required := []struct{ name, value string }{
		{"first_name", in.FirstName},
		{"surname", in.Surname},
		{"middle_name", in.MiddleName},
		{"phone", in.Phone},
		{"email", in.Email},
		{"gender", in.Gender},
	}
	for _, f := range required {
		if f.value == "" {
			return apperr.ErrVerificationFailed.WithMessage(f.name + " is required")
		}
	}
	if !validEmail(in.Email) {
		return apperr.ErrVerificationFailed.WithMessage("email is invalid")
	}
	if !in.BirthDate.Valid {
		return apperr.ErrVerificationFailed.WithMessage("birth_date is required")
	}
	return nil
}

// ProfileUpdate is a partial update of the verified profile. Nil fields are
// left unchanged.
type ProfileUpdate struct {
	FirstName  *string      `json:"first_name"`
	Surname    *string      `json:"surname"`
	MiddleName *string      `json:"middle_name"`
	Phone      *string      `json:"phone"`
	Email      *string      `json:"email"`
	BirthDate  *pgtype.Date `json:"birth_date"`
	Gender     *string      `json:"gender"`
}

func (p ProfileUpdate) Validate() error {
	for name, v := range map[string]*string{
		"first_name":  p.FirstName,
		"surname":     p.Surname,
		"middle_name": p.MiddleName,
		"phone":       p.Phone,
		"gender":      p.Gender,
	} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return apperr.BadRequest("%s must not be empty", name)
		}
	}
	if p.Email != nil && !validEmail(*p.Email) {
		return apperr.BadRequest("email is invalid")
	}
	if p.BirthDate != nil && !p.BirthDate.Valid {
		return apperr.BadRequest("birth_date must not be null")
	}
	return nil
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.Surname == nil && p.MiddleName == nil &&
		p.Phone == nil && p.Email == nil && p.BirthDate == nil && p.Gender == nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// RefreshToken is a stored refresh token. Only the keyed hash of the token is
// persisted.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }

func (t *RefreshToken) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	Access  string
	Refresh string
}
