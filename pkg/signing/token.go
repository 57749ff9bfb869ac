package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformed = errors.New("malformed token")
	ErrSignature = errors.New("invalid token signature")
	ErrExpired   = errors.New("token expired")
)

// Claims is the payload carried by a verification token.
type Claims struct {
	Reference string
	Subject   string
	ExpiresAt time.Time
}

// Signer issues and checks HMAC-SHA256 tokens of the form
// "<reference>.<expiry unix>.<base64url subject>.<hex signature>".
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs reference and subject. reference must not contain a dot.
func (s *Signer) Generate(reference, subject string) (string, time.Time, error) {
	if reference == "" || subject == "" {
		return "", time.Time{}, fmt.Errorf("reference and subject required")
	}
	if strings.Contains(reference, ".") {
		return "", time.Time{}, fmt.Errorf("reference %q contains a dot", reference)
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(subject))
	token := strings.Join([]string{reference, ts, encoded, s.sign(reference, ts, encoded)}, ".")
	return token, expiresAt, nil
}

// Parse validates token and returns its claims.
func (s *Signer) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Claims{}, ErrMalformed
	}
	reference, ts, encoded, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(reference, ts, encoded)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Claims{}, ErrSignature
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	subject, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrMalformed
	}

	claims := Claims{Reference: reference, Subject: string(subject), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(claims.ExpiresAt) {
		return claims, ErrExpired
	}
	return claims, nil
}

func (s *Signer) sign(reference, ts, encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(reference + "|" + ts + "|" + encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
