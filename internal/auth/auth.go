// Package auth issues and verifies the JWT bearer tokens of the dashboard API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jengzang/dmarcviz/internal/config"
)

var (
	// ErrInvalidCredentials is returned for unknown users and wrong passwords
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for tokens that fail verification
	ErrInvalidToken = errors.New("invalid token")
)

const issuer = "dmarcviz"

// Claims are the JWT claims of a dashboard session
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator checks credentials against the configured users and signs tokens
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	users  map[string]string // name -> bcrypt hash
	now    func() time.Time
}

// NewAuthenticator creates an authenticator from the auth configuration
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	users := make(map[string]string, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Name] = u.PasswordHash
	}
	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		users:  users,
		now:    time.Now,
	}
}

// HashPassword returns a bcrypt hash suitable for the users configuration
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Login verifies name and password and returns a signed token with its expiry
func (a *Authenticator) Login(name, password string) (string, time.Time, error) {
	hash, ok := a.users[name]
	if !ok {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.Issue(name)
}

// Issue signs a token for subject
func (a *Authenticator) Issue(subject string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expires, nil
}

// Verify parses a token and returns its subject
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}
