package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// WalletSessionRepository defines persistence for one-time wallet sessions.
type WalletSessionRepository interface {
	Store(ctx context.Context, session *WalletSession) error
	// Consume atomically flips used=false to used=true on an unexpired
	// session and returns it. At most one call per session ID succeeds,
	// regardless of how many race. Returns ErrNotFound-style failure when
	// the session is unknown, expired or already used.
	Consume(ctx context.Context, sessionID string, now time.Time) (*WalletSession, error)
	// Peek returns an unexpired, unused session without consuming it.
	Peek(ctx context.Context, sessionID string, now time.Time) (*WalletSession, error)
	DeleteExpired(ctx context.Context, now time.Time) error
	// DeleteUsedBefore removes consumed sessions whose used_at precedes the
	// cutoff.
	DeleteUsedBefore(ctx context.Context, cutoff time.Time) error
}

// OAuthStateRepository defines persistence for one-time OAuth states.
type OAuthStateRepository interface {
	Store(ctx context.Context, state *OAuthState) error
	// Consume has the same single-use contract as
	// WalletSessionRepository.Consume.
	Consume(ctx context.Context, state string, now time.Time) (*OAuthState, error)
	DeleteExpired(ctx context.Context, now time.Time) error
}

// RoleRepository defines persistence for role definitions.
type RoleRepository interface {
	Insert(ctx context.Context, role *Role) error
	GetAll(ctx context.Context) ([]Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
}

// LinkedAccountRepository defines persistence for wallet/account links.
type LinkedAccountRepository interface {
	// Upsert stores the account keyed by wallet address.
	Upsert(ctx context.Context, account *LinkedAccount) error
	FindByWallet(ctx context.Context, walletAddress string) (*LinkedAccount, error)
	FindByExternalAccount(ctx context.Context, externalAccountID string) (*LinkedAccount, error)
	UpdateRoles(ctx context.Context, walletAddress string, balance decimal.Decimal, currentRole string, eligibleRoles []string) error
}

// UserSessionRepository defines persistence for site login sessions.
type UserSessionRepository interface {
	Store(ctx context.Context, session *UserSession) error
	// FindActive returns an active, unexpired session by token.
	FindActive(ctx context.Context, token string, now time.Time) (*UserSession, error)
	Deactivate(ctx context.Context, token string) error
}
