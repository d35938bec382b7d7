package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/walletgate/walletgate/discord"
	"github.com/walletgate/walletgate/domain"
)

var errFakeNotFound = errors.New("not found")

// fakeSessionRepo mirrors the document store's conditional-update semantics:
// Consume succeeds at most once per session ID, under one lock.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.WalletSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.WalletSession)}
}

func (r *fakeSessionRepo) Store(_ context.Context, session *domain.WalletSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.SessionID] = &cp
	return nil
}

func (r *fakeSessionRepo) Consume(_ context.Context, sessionID string, now time.Time) (*domain.WalletSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.Used || !session.ExpiresAt.After(now) {
		return nil, errFakeNotFound
	}
	session.Used = true
	session.UsedAt = now
	cp := *session
	return &cp, nil
}

func (r *fakeSessionRepo) Peek(_ context.Context, sessionID string, now time.Time) (*domain.WalletSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.Used || !session.ExpiresAt.After(now) {
		return nil, errFakeNotFound
	}
	cp := *session
	return &cp, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if !session.ExpiresAt.After(now) {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *fakeSessionRepo) DeleteUsedBefore(_ context.Context, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if session.Used && session.UsedAt.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
	return nil
}

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.OAuthState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*domain.OAuthState)}
}

func (r *fakeStateRepo) Store(_ context.Context, state *domain.OAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *state
	r.states[state.State] = &cp
	return nil
}

func (r *fakeStateRepo) Consume(_ context.Context, state string, now time.Time) (*domain.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.states[state]
	if !ok || record.Used || !record.ExpiresAt.After(now) {
		return nil, errFakeNotFound
	}
	record.Used = true
	record.UsedAt = now
	cp := *record
	return &cp, nil
}

func (r *fakeStateRepo) DeleteExpired(_ context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s, record := range r.states {
		if !record.ExpiresAt.After(now) {
			delete(r.states, s)
		}
	}
	return nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	byWallet map[string]*domain.LinkedAccount
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{byWallet: make(map[string]*domain.LinkedAccount)}
}

func (r *fakeAccountRepo) Upsert(_ context.Context, account *domain.LinkedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *account
	r.byWallet[account.WalletAddress] = &cp
	return nil
}

func (r *fakeAccountRepo) FindByWallet(_ context.Context, walletAddress string) (*domain.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byWallet[walletAddress]
	if !ok {
		return nil, errFakeNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *fakeAccountRepo) FindByExternalAccount(_ context.Context, externalAccountID string) (*domain.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.byWallet {
		if account.ExternalAccountID == externalAccountID {
			cp := *account
			return &cp, nil
		}
	}
	return nil, errFakeNotFound
}

func (r *fakeAccountRepo) UpdateRoles(_ context.Context, walletAddress string, balance decimal.Decimal, currentRole string, eligibleRoles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byWallet[walletAddress]
	if !ok {
		return errFakeNotFound
	}
	account.Balance = balance
	account.CurrentRole = currentRole
	account.EligibleRoles = eligibleRoles
	return nil
}

type fakeUserSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.UserSession
}

func newFakeUserSessionRepo() *fakeUserSessionRepo {
	return &fakeUserSessionRepo{sessions: make(map[string]*domain.UserSession)}
}

func (r *fakeUserSessionRepo) Store(_ context.Context, session *domain.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.Token] = &cp
	return nil
}

func (r *fakeUserSessionRepo) FindActive(_ context.Context, token string, now time.Time) (*domain.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok || !session.Active || !session.ExpiresAt.After(now) {
		return nil, errFakeNotFound
	}
	cp := *session
	return &cp, nil
}

func (r *fakeUserSessionRepo) Deactivate(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[token]; ok {
		session.Active = false
	}
	return nil
}

type fakeRoleRepo struct {
	mu    sync.Mutex
	roles []domain.Role
}

func (r *fakeRoleRepo) Insert(_ context.Context, role *domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = append(r.roles, *role)
	return nil
}

func (r *fakeRoleRepo) GetAll(_ context.Context) ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Role, len(r.roles))
	copy(out, r.roles)
	return out, nil
}

func (r *fakeRoleRepo) FindByName(_ context.Context, name string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.roles {
		if r.roles[i].MatchesName(name) {
			cp := r.roles[i]
			return &cp, nil
		}
	}
	return nil, errFakeNotFound
}

// fakeProvider scripts the identity-provider calls and records what the
// orchestrator asked of it.
type fakeProvider struct {
	exchangeErr   error
	profileErr    error
	joinErr       error
	memberErr     error
	member        bool
	profile       discord.Profile
	joinedUserIDs []string
	lastVerifier  string
}

func (p *fakeProvider) ExchangeCode(_ context.Context, _, codeVerifier string) (*discord.TokenResponse, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	p.lastVerifier = codeVerifier
	return &discord.TokenResponse{AccessToken: "access-token", RefreshToken: "refresh-token"}, nil
}

func (p *fakeProvider) FetchProfile(_ context.Context, _ string) (*discord.Profile, error) {
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	cp := p.profile
	return &cp, nil
}

func (p *fakeProvider) JoinGuild(_ context.Context, userID, _ string) error {
	p.joinedUserIDs = append(p.joinedUserIDs, userID)
	return p.joinErr
}

func (p *fakeProvider) IsGuildMember(_ context.Context, _ string) (bool, error) {
	if p.memberErr != nil {
		return false, p.memberErr
	}
	return p.member, nil
}

type fakeBalances struct {
	balance decimal.Decimal
	err     error
}

func (b *fakeBalances) Balance(_ context.Context, _ string) (decimal.Decimal, error) {
	if b.err != nil {
		return decimal.Zero, b.err
	}
	return b.balance, nil
}

type fakeGranter struct {
	assignErr error
	revokeErr error

	assignedRoleIDs []string
	assignedAccount string
	revokedAccounts []string
}

func (g *fakeGranter) AssignRoles(_ context.Context, accountID, _ string, roleIDs []string) error {
	if g.assignErr != nil {
		return g.assignErr
	}
	g.assignedAccount = accountID
	g.assignedRoleIDs = append(g.assignedRoleIDs, roleIDs...)
	return nil
}

func (g *fakeGranter) RevokeRoles(_ context.Context, accountID, _ string) error {
	g.revokedAccounts = append(g.revokedAccounts, accountID)
	return g.revokeErr
}
