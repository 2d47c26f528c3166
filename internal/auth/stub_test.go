package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edunirix/portal/internal/auth"
	"github.com/edunirix/portal/internal/shared"
)

type stubRepo struct {
	mu       sync.Mutex
	accounts map[int64]*auth.Account
	touched  map[int64]time.Time
}

func newStubRepo(accounts ...*auth.Account) *stubRepo {
	r := &stubRepo{accounts: make(map[int64]*auth.Account), touched: make(map[int64]time.Time)}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			c := *a
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (s *stubRepo) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.LastLoginAt = &at
	s.touched[id] = at
	return nil
}

func (s *stubRepo) UpdatePassword(ctx context.Context, id int64, hash string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	a.PasswordHash = hash
	a.MustChangePassword = false
	a.IsFirstLogin = false
	c := *a
	return &c, nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}
