package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// webAppDataKey is the HMAC key Telegram uses to derive the init-data secret
// from the bot token.
const webAppDataKey = "WebAppData"

// TelegramVerifier checks the signature of Telegram WebApp init data.
type TelegramVerifier struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

// NewTelegramVerifier creates a verifier for botToken. A positive maxAge
// rejects init data whose auth_date is older than maxAge; zero disables it.
func NewTelegramVerifier(botToken string, maxAge time.Duration) *TelegramVerifier {
	return &TelegramVerifier{botToken: botToken, maxAge: maxAge, now: time.Now}
}

// Verify checks rawInitData and returns its fields without the hash.
func (v *TelegramVerifier) Verify(rawInitData string) (map[string]string, error) {
	fields, err := ParseInitData(rawInitData)
	if err != nil {
		return nil, err
	}

	hash := fields["hash"]
	delete(fields, "hash")
	if hash == "" {
		return nil, apperr.ErrMissingHash
	}

	expected := SignInitData(v.botToken, fields)
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, apperr.ErrInvalidSignature
	}

	if err := v.checkAge(fields["auth_date"]); err != nil {
		return nil, err
	}
	return fields, nil
}

func (v *TelegramVerifier) checkAge(authDate string) error {
	if v.maxAge <= 0 || authDate == "" {
		return nil
	}
	ts, err := strconv.ParseInt(authDate, 10, 64)
	if err != nil {
		return apperr.ErrInitDataMalformed.WithMessage("auth_date is not a unix timestamp")
	}
	if v.now().Sub(time.Unix(ts, 0)) > v.maxAge {
		return apperr.ErrInitDataExpired
	}
	return nil
}

// ParseInitData splits a query-string formatted init data payload. Every pair
// must contain "="; keys and values are unescaped once and later duplicates
// overwrite earlier ones. Blank values are kept.
func ParseInitData(raw string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		k, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, apperr.ErrInitDataMalformed
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, apperr.ErrInitDataMalformed.Wrap(err)
		}
		value, err := url.QueryUnescape(val)
		if err != nil {
			return nil, apperr.ErrInitDataMalformed.Wrap(err)
		}
		fields[key] = value
	}
	return fields, nil
}

// DataCheckString builds the canonical string: fields sorted by key, rendered
// as key=value and joined with newlines.
func DataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// SignInitData returns the hex hash Telegram would attach to fields. fields
// must not contain "hash".
func SignInitData(botToken string, fields map[string]string) string {
	secret := hmac.New(sha256.New, []byte(webAppDataKey))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(DataCheckString(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// TelegramUser is the profile carried in the "user" init-data field.
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ParseTelegramUser decodes the "user" field of verified init data.
func ParseTelegramUser(fields map[string]string) (*TelegramUser, error) {
	raw, ok := fields["user"]
	if !ok || raw == "" {
		return nil, fmt.Errorf("init data has no user field")
	}
	var u TelegramUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode telegram user: %w", err)
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("telegram user has no id")
	}
	return &u, nil
}
