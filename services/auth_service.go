package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/walletgate/walletgate/domain"
)

// ErrUnauthorized is returned for missing, invalid or expired credentials
// on authenticated operations.
var ErrUnauthorized = errors.New("unauthorized")

// ErrAdminRequired is returned when the caller is authenticated but lacks
// admin privileges.
var ErrAdminRequired = errors.New("admin access required")

// AuthService issues and verifies the site login sessions created after a
// successful OAuth callback, and gates privileged operations behind either
// the static admin API key or an admin-flagged account session.
type AuthService struct {
	sessions    domain.UserSessionRepository
	accounts    domain.LinkedAccountRepository
	adminAPIKey string
	ttl         time.Duration
	now         func() time.Time
}

// NewAuthService creates the auth service with the login-session TTL.
func NewAuthService(sessions domain.UserSessionRepository, accounts domain.LinkedAccountRepository, adminAPIKey string, ttl time.Duration) *AuthService {
	return &AuthService{
		sessions:    sessions,
		accounts:    accounts,
		adminAPIKey: adminAPIKey,
		ttl:         ttl,
		now:         time.Now,
	}
}

// CreateSession issues a fresh login session for a linked account.
func (s *AuthService) CreateSession(ctx context.Context, walletAddress, externalAccountID string) (string, error) {
	token, err := newSecureToken()
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	session := &domain.UserSession{
		Token:             token,
		WalletAddress:     walletAddress,
		ExternalAccountID: externalAccountID,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.ttl),
		Active:            true,
	}

	if err := s.sessions.Store(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

// Verify resolves a login token to its linked account.
func (s *AuthService) Verify(ctx context.Context, token string) (*domain.LinkedAccount, error) {
	if !isValidToken(token) {
		return nil, ErrUnauthorized
	}

	session, err := s.sessions.FindActive(ctx, token, s.now().UTC())
	if err != nil {
		return nil, ErrUnauthorized
	}

	account, err := s.accounts.FindByWallet(ctx, session.WalletAddress)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return account, nil
}

// AccountByWallet looks up a linked account directly by wallet address.
func (s *AuthService) AccountByWallet(ctx context.Context, walletAddress string) (*domain.LinkedAccount, error) {
	return s.accounts.FindByWallet(ctx, walletAddress)
}

// VerifyAdmin accepts either the static shared secret or a login session
// whose account carries the admin flag. The API key comparison is constant
// time.
func (s *AuthService) VerifyAdmin(ctx context.Context, apiKey, sessionToken string) error {
	if apiKey != "" && s.adminAPIKey != "" {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.adminAPIKey)) == 1 {
			return nil
		}
	}

	if sessionToken != "" {
		account, err := s.Verify(ctx, sessionToken)
		if err == nil && account.Admin {
			return nil
		}
	}

	return ErrAdminRequired
}

// Logout deactivates a login session. Unknown tokens are not an error worth
// surfacing to the client.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if !isValidToken(token) {
		return nil
	}
	return s.sessions.Deactivate(ctx, token)
}
