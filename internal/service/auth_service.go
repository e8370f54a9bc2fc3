package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tenacity/ops-backend/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoPassphrase       = errors.New("operator passphrase hash not configured")
)

// TokenType distinguishes operator tokens from anything else signed with the
// same secret.
type TokenType string

const TokenTypeOperator TokenType = "operator"

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
}

// AuthService issues and validates operator tokens for the ops API.
type AuthService struct {
	cfg *config.Config
	now func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg, now: time.Now}
}

// HashPassphrase hashes a passphrase with the configured bcrypt cost.
func (s *AuthService) HashPassphrase(passphrase string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassphrase compares a passphrase against OPERATOR_PASSPHRASE_HASH.
func (s *AuthService) CheckPassphrase(passphrase string) error {
	if s.cfg.OperatorPassphraseHash == "" {
		return ErrNoPassphrase
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.OperatorPassphraseHash), []byte(passphrase)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueOperatorToken signs an operator JWT for subject, valid for JWTExpiry.
func (s *AuthService) IssueOperatorToken(subject string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.cfg.JWTExpiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		TokenType: TokenTypeOperator,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ValidateToken parses and validates a JWT string.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
