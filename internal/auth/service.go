package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/edunirix/portal/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *Tokens
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *Tokens) *Service {
	return &Service{repo: repo, tokens: tokens, now: time.Now}
}

// NormalizeEmail trims and case-folds an email address.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Login validates credentials and issues a token. The returned user carries
// the flags as stored before this login; they only change with the password.
func (s *Service) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	account, err := s.repo.FindByEmail(ctx, NormalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrInactiveAccount
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, err
	}
	first := account.IsFirstLogin && account.LastLoginAt == nil
	if err := s.repo.TouchLogin(ctx, account.ID, s.now()); err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: account.User(), firstSignIn: first}, nil
}

// Authorize resolves a bearer token to the active account it belongs to.
func (s *Service) Authorize(ctx context.Context, token string) (*Account, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidToken
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, shared.ErrInactiveAccount
	}
	return account, nil
}

// ChangePassword verifies the current password, stores the new one and
// clears the forced-change flags.
func (s *Service) ChangePassword(ctx context.Context, account *Account, change PasswordChange) (*User, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(change.CurrentPassword)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	hash, err := HashPassword(change.NewPassword)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdatePassword(ctx, account.ID, hash)
	if err != nil {
		return nil, err
	}
	user := updated.User()
	return &user, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}
