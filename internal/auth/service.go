package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	minPasswordLen = 8
	tokenTTL       = 30 * 24 * time.Hour
)

type claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Service registers and signs in accounts and issues HS256 bearer tokens.
type Service struct {
	accounts   *store.AccountStore
	secret     []byte
	bcryptCost int
	now        func() time.Time
}

func NewService(accounts *store.AccountStore, secret string, bcryptCost int) *Service {
	return &Service{
		accounts:   accounts,
		secret:     []byte(secret),
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// Register creates an account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, email, displayName, password string) (*model.Account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	account, err := s.accounts.Create(uuid.NewString(), email, displayName, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		return nil, "", ErrEmailTaken
	}
	if err != nil {
		return nil, "", fmt.Errorf("create account: %w", err)
	}

	token, err := s.issue(account)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// Login checks the password and returns the account with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Account, string, error) {
	account, err := s.accounts.GetByEmail(email)
	if err != nil {
		return nil, "", fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issue(account)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// ValidateToken parses a bearer token into the identity it was issued for.
func (s *Service) ValidateToken(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UID: c.Subject, Email: c.Email, DisplayName: c.DisplayName}, nil
}

func (s *Service) issue(account *model.Account) (string, error) {
	now := s.now()
	c := claims{
		Email:       account.Email,
		DisplayName: account.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
