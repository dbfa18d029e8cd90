package service

import (
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = 1 * time.Hour

// Operator is one API credential loaded from configuration. PasswordHash is a
// bcrypt hash, never the plain password.
type Operator struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"passwordHash"`
	Role         string `yaml:"role"`
}

// AuthConfig carries token-signing settings and the operator list.
type AuthConfig struct {
	JWTSecret []byte
	JWTIssuer string
	TokenTTL  time.Duration
	Operators []Operator
}

// AuthService issues and validates operator access tokens. Operators are
// static config entries; there is no account store behind this.
type AuthService struct {
	secret    []byte
	issuer    string
	tokenTTL  time.Duration
	operators map[string]Operator
}

// NewAuthService validates the config and builds the service.
func NewAuthService(cfg AuthConfig) (*AuthService, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "skillify-eval"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	operators := make(map[string]Operator, len(cfg.Operators))
	for _, op := range cfg.Operators {
		op.Username = strings.TrimSpace(op.Username)
		if op.Username == "" || op.PasswordHash == "" {
			return nil, fmt.Errorf("operator entries need username and passwordHash")
		}
		if op.Role == "" {
			op.Role = "operator"
		}
		operators[op.Username] = op
	}
	return &AuthService{
		secret:    cfg.JWTSecret,
		issuer:    cfg.JWTIssuer,
		tokenTTL:  cfg.TokenTTL,
		operators: operators,
	}, nil
}

// TokenResult is the outcome of a successful credential exchange.
type TokenResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Role        string
}

// OperatorInfo identifies the operator behind a validated token.
type OperatorInfo struct {
	Username string
	Role     string
}

type tokenClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// IssueToken verifies operator credentials and returns a signed access token.
func (s *AuthService) IssueToken(username, password string) (TokenResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return TokenResult{}, appErr.New(appErr.InvalidCredentials)
	}
	op, ok := s.operators[username]
	if !ok {
		return TokenResult{}, appErr.New(appErr.InvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return TokenResult{}, appErr.New(appErr.InvalidCredentials)
	}

	token, expiresAt, err := s.generateToken(op.Username, op.Role)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{AccessToken: token, ExpiresAt: expiresAt, Role: op.Role}, nil
}

// Authenticate validates a raw bearer token and returns the operator identity.
func (s *AuthService) Authenticate(raw string) (OperatorInfo, error) {
	if raw == "" {
		return OperatorInfo{}, appErr.New(appErr.TokenInvalid)
	}
	claims, err := s.parseToken(raw)
	if err != nil {
		return OperatorInfo{}, err
	}
	return OperatorInfo{Username: claims.Subject, Role: claims.Role}, nil
}

func (s *AuthService) generateToken(username, role string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	tokenID, err := newTokenID()
	if err != nil {
		return "", time.Time{}, err
	}
	claims := tokenClaims{
		Role:      role,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, appErr.Wrap(fmt.Errorf("sign token failed: %w", err), appErr.TokenGenerationFailed)
	}
	return raw, expiresAt, nil
}

func (s *AuthService) parseToken(raw string) (*tokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErr.New(appErr.TokenExpired)
		}
		return nil, appErr.New(appErr.TokenInvalid)
	}
	if !parsed.Valid {
		return nil, appErr.New(appErr.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return nil, appErr.New(appErr.TokenInvalid)
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, appErr.New(appErr.TokenInvalid)
	}
	if claims.TokenType != "access" {
		return nil, appErr.New(appErr.TokenInvalid)
	}
	if claims.Subject == "" {
		return nil, appErr.New(appErr.TokenInvalid)
	}
	return claims, nil
}

func newTokenID() (string, error) {
	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", appErr.Wrap(fmt.Errorf("generate token id failed: %w", err), appErr.TokenGenerationFailed)
	}
	return hex.EncodeToString(randomBytes), nil
}

// HashPassword produces a bcrypt hash suitable for operator config entries.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password failed: %w", err)
	}
	return string(hash), nil
}
