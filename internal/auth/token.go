package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for expired, malformed or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims binds a user to a session for the lifetime of the token.
type Claims struct {
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// TokenPair is what create/join/refresh hand back to clients.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService issues and validates the HS256 tokens that assert a
// (userID, sessionID) pair on every privileged or membership call.
type TokenService struct {
	secret     []byte
	tokenTTL   time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, tokenTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue returns a fresh access/refresh pair for the user in the session.
func (s *TokenService) Issue(userID, sessionID string) (TokenPair, error) {
	token, err := s.sign(userID, sessionID, s.tokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(userID, sessionID, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Token: token, RefreshToken: refresh}, nil
}

// Refresh validates a refresh token and issues a new pair for the same
// user/session binding.
func (s *TokenService) Refresh(refreshToken string) (TokenPair, error) {
	userID, sessionID, err := s.Parse(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	return s.Issue(userID, sessionID)
}

// Parse validates a token and returns the (userID, sessionID) it asserts.
func (s *TokenService) Parse(tokenString string) (userID, sessionID string, err error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.SessionID, nil
}

func (s *TokenService) sign(userID, sessionID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
