package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// AccessTokenName is the "name" claim of access tokens.
const AccessTokenName = "access"

const (
	refreshTokenLength   = 64
	refreshTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret     []byte
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService issues signed access tokens and opaque refresh tokens.
type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenService{
		secret:     cfg.Secret,
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// AccessSubject is what an access token asserts about its holder.
type AccessSubject struct {
	UserID   int64
	Role     string
	Username string
}

// AccessClaims are the claims of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// UserID parses the subject claim.
func (c *AccessClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// AccessTTL is the lifetime of issued access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL is the lifetime of issued refresh tokens.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess signs a short-lived access token for subject.
func (s *TokenService) IssueAccess(subject AccessSubject) (string, error) {
	now := s.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subject.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
		Role:     subject.Role,
		Username: subject.Username,
		Name:     AccessTokenName,
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// DecodeAccess verifies token and checks that its name claim is expectedName.
func (s *TokenService) DecodeAccess(token, expectedName string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, apperr.ErrTokenInvalid.Wrap(err)
	}
	if claims.Subject == "" {
		return nil, apperr.ErrTokenMissingSubject
	}
	if _, err := claims.UserID(); err != nil {
		return nil, apperr.ErrTokenInvalid.Wrap(err)
	}
	if claims.Name != expectedName {
		return nil, apperr.ErrTokenTypeMismatch
	}
	return claims, nil
}

// IssueRefresh returns a new random refresh token. Only its hash is stored.
func (s *TokenService) IssueRefresh() (string, error) {
	max := big.NewInt(int64(len(refreshTokenAlphabet)))
	buf := make([]byte, refreshTokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate refresh token: %w", err)
		}
		buf[i] = refreshTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// HashRefresh returns the keyed digest under which a refresh token is stored.
func (s *TokenService) HashRefresh(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// RefreshExpiry is the expiry of a refresh token issued at now.
func (s *TokenService) RefreshExpiry(now time.Time) time.Time {
	return now.Add(s.refreshTTL)
}
