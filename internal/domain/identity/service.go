package identity

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
)

// InitDataVerifier checks signed Telegram init data. *auth.TelegramVerifier
// satisfies it.
type InitDataVerifier interface {
	Verify(raw string) (map[string]string, error)
}

// TokenIssuer is the part of *auth.TokenService the session flows use.
type TokenIssuer interface {
	IssueAccess(subject auth.AccessSubject) (string, error)
	IssueRefresh() (string, error)
	HashRefresh(token string) string
	RefreshExpiry(now time.Time) time.Time
}

type Service struct {
	users    UserRepository
	tokens   RefreshTokenRepository
	verifier InitDataVerifier
	issuer   TokenIssuer
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(users UserRepository, tokens RefreshTokenRepository, verifier InitDataVerifier, issuer TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		verifier: verifier,
		issuer:   issuer,
		logger:   logger.With().Str("component", "identity").Logger(),
		now:      time.Now,
	}
}

func (s *Service) accessFor(u *User) (string, error) {
	return s.issuer.IssueAccess(auth.AccessSubject{
		UserID:   u.ID,
		Role:     u.Role,
		Username: u.UsernameOrEmpty(),
	})
}

// LoginViaTelegram verifies init data, creates the account on first sight
// and starts a new session. Every earlier refresh token of the user is
// revoked.
func (s *Service) LoginViaTelegram(ctx context.Context, rawInitData string) (TokenPair, error) {
	fields, err := s.verifier.Verify(rawInitData)
	if err != nil {
		s.logger.Warn().Err(err).Msg("telegram verification failed")
		return TokenPair{}, apperr.ErrExternalService.WithMessage("Telegram verification failed").Wrap(err)
	}
	tgUser, err := auth.ParseTelegramUser(fields)
	if err != nil {
		s.logger.Warn().Err(err).Msg("telegram user payload rejected")
		return TokenPair{}, apperr.ErrExternalService.WithMessage("Telegram verification failed").Wrap(err)
	}

	var username *string
	if tgUser.Username != "" {
		username = &tgUser.Username
	}
	u, err := s.users.Upsert(ctx, tgUser.ID, username)
	if err != nil {
		return TokenPair{}, err
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return TokenPair{}, err
	}
	expires := s.issuer.RefreshExpiry(s.now())
	if err := s.tokens.CreateAndRevokeAllForUser(ctx, s.issuer.HashRefresh(pair.Refresh), u.ID, expires); err != nil {
		return TokenPair{}, err
	}

	s.logger.Info().Int64("user_id", u.ID).Str("role", u.Role).Msg("user logged in")
	return pair, nil
}

func (s *Service) issuePair(u *User) (TokenPair, error) {
	access, err := s.accessFor(u)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issuer.IssueRefresh()
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Verify stores the profile, promotes the user to role "user" and returns a
// fresh access token carrying the new role.
func (s *Service) Verify(ctx context.Context, userID int64, in VerifyInput) (string, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}
	u, err := s.users.Verify(ctx, userID, in)
	if err != nil {
		return "", err
	}
	s.logger.Info().Int64("user_id", u.ID).Msg("user verified")
	return s.accessFor(u)
}

// ChangeRoleToAdmin grants the caller the admin role.
func (s *Service) ChangeRoleToAdmin(ctx context.Context, userID int64) (string, error) {
	return s.setRole(ctx, userID, auth.RoleAdmin)
}

// ChangeRoleToUser drops the caller back to the user role.
func (s *Service) ChangeRoleToUser(ctx context.Context, userID int64) (string, error) {
	return s.setRole(ctx, userID, auth.RoleUser)
}

func (s *Service) setRole(ctx context.Context, userID int64, role string) (string, error) {
	u, err := s.users.SetRole(ctx, userID, role)
	if err != nil {
		return "", err
	}
	s.logger.Info().Int64("user_id", u.ID).Str("role", role).Msg("role changed")
	return s.accessFor(u)
}

// RefreshTokens exchanges a refresh token for a new pair. Presenting a token
// that was already revoked is treated as theft: every session of its owner is
// revoked.
func (s *Service) RefreshTokens(ctx context.Context, presented string) (TokenPair, error) {
	hash := s.issuer.HashRefresh(presented)
	record, err := s.tokens.GetByToken(ctx, hash)
	if err != nil {
		return TokenPair{}, err
	}

	now := s.now()
	if record.Revoked() {
		if err := s.tokens.RevokeAllForUser(ctx, record.UserID); err != nil {
			return TokenPair{}, err
		}
		s.logger.Warn().Int64("user_id", record.UserID).Msg("revoked refresh token reused, all sessions revoked")
		return TokenPair{}, apperr.ErrTokenRevoked
	}
	if record.Expired(now) {
		return TokenPair{}, apperr.ErrTokenExpired
	}

	u, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		return TokenPair{}, err
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return TokenPair{}, err
	}
	err = s.tokens.Rotate(ctx, hash, s.issuer.HashRefresh(pair.Refresh), u.ID, s.issuer.RefreshExpiry(now))
	if errors.Is(err, ErrRotationConflict) {
		return TokenPair{}, apperr.ErrTokenRevoked.Wrap(err)
	}
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout revokes every refresh token of the owner of presented. Unknown
// tokens are ignored.
func (s *Service) Logout(ctx context.Context, presented string) error {
	record, err := s.tokens.GetByToken(ctx, s.issuer.HashRefresh(presented))
	if errors.Is(err, apperr.ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, record.UserID)
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, p ProfileUpdate) (*User, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Empty() {
		return s.users.GetByID(ctx, userID)
	}
	return s.users.UpdateProfile(ctx, userID, p)
}
