package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

// SessionTokenService signs the browser's session cookie. The token only
// carries the BFF session id; everything else lives in the session store.
type SessionTokenService interface {
	Issue(sessionID string) (string, error)
	Parse(token string) (string, error)
	NewSessionID() string
	TTL() time.Duration
}

type SessionClaims struct {
	jwt.RegisteredClaims
}

type sessionTokenService struct {
	log    *logger.Logger
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionTokenService(log *logger.Logger, secret string, ttl time.Duration, now func() time.Time) (SessionTokenService, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("SESSION_SIGNING_KEY must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &sessionTokenService{
		log:    log.With("service", "SessionTokenService"),
		secret: []byte(secret),
		ttl:    ttl,
		now:    now,
	}, nil
}

func (s *sessionTokenService) NewSessionID() string { return uuid.NewString() }

func (s *sessionTokenService) TTL() time.Duration { return s.ttl }

func (s *sessionTokenService) Issue(sessionID string) (string, error) {
	now := s.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *sessionTokenService) Parse(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("parse session token: %w", err)
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid session token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid session id in token: %w", err)
	}
	return claims.Subject, nil
}
