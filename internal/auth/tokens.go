package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vidfriends/videotube/internal/models"
)

// ErrInvalidToken indicates a token failed signature, algorithm or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// TokenConfig carries the signing material for both token kinds.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// AccessClaims identify the caller on every authenticated request.
type AccessClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
	jwt.RegisteredClaims
}

// refreshClaims carry only the user id (subject) and a unique token id.
type refreshClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenIssuer validates cfg and constructs an issuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("auth: token secrets must be provided")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}, nil
}

// SignAccess issues an access token for user.
func (t *TokenIssuer) SignAccess(user models.User) (string, error) {
	now := t.now()
	claims := AccessClaims{
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.AccessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// SignRefresh issues a refresh token for userID. Each call yields a distinct token.
func (t *TokenIssuer) SignRefresh(userID string) (string, error) {
	now := t.now()
	claims := refreshClaims{jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.RefreshTTL)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.RefreshSecret))
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// ParseAccess verifies an access token and returns its claims.
func (t *TokenIssuer) ParseAccess(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := t.parse(token, t.cfg.AccessSecret, &claims); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns the user id it was issued to.
func (t *TokenIssuer) ParseRefresh(token string) (string, error) {
	var claims refreshClaims
	if err := t.parse(token, t.cfg.RefreshSecret, &claims); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (t *TokenIssuer) parse(token, secret string, claims jwt.Claims) error {
	if token == "" {
		return ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return nil
}
