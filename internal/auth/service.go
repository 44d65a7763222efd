package auth

import (
	"context"
	"errors"
	"time"

	"papertrade/internal/model"
	"papertrade/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Service resolves api credentials to users and mints short-lived
// listen tokens for the push channel.
type Service struct {
	users  store.Users
	issuer string
	secret []byte
	ttl    time.Duration
}

func NewService(users store.Users, issuer string, secret []byte, ttl time.Duration) *Service {
	return &Service{users: users, issuer: issuer, secret: secret, ttl: ttl}
}

func (s *Service) Resolve(ctx context.Context, apiKey, apiSecret string) (model.User, error) {
	u, err := s.users.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.SecretHash), []byte(apiSecret)) != nil {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ListenToken signs a short-lived token a client presents on the
// websocket handshake.
func (s *Service) ListenToken(user model.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) ParseListenToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}
