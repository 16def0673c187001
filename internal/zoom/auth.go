package zoom

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kippnorcal/zoom/internal/syncerr"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a pre-issued bearer token.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", syncerr.New(syncerr.CodeUnauthorized, "token", errors.New("empty bearer token"))
	}
	return string(t), nil
}

// JWTSource signs HS256 API tokens from an API key and secret, reusing a
// token until shortly before it expires.
type JWTSource struct {
	key    string
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewJWTSource returns a JWTSource issuing one-hour tokens.
func NewJWTSource(key, secret string) *JWTSource {
	return &JWTSource{
		key:    key,
		secret: []byte(secret),
		ttl:    time.Hour,
		now:    time.Now,
	}
}

func (s *JWTSource) Token() (string, error) {
	if s.key == "" || len(s.secret) == 0 {
		return "", syncerr.New(syncerr.CodeUnauthorized, "token", errors.New("zoom api key and secret are required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(5*time.Minute).Before(s.expires) {
		return s.token, nil
	}

	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    s.key,
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", syncerr.New(syncerr.CodeUnauthorized, "token", err)
	}

	s.token = signed
	s.expires = expires
	return signed, nil
}
