package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/walletgate/walletgate/discord"
	"github.com/walletgate/walletgate/domain"
	"github.com/walletgate/walletgate/internal/vault"
	"github.com/walletgate/walletgate/roles"
)

// LinkFailure names the terminal failure state of the callback flow. The
// value doubles as the opaque error code carried on the failure redirect;
// no internal detail travels with it.
type LinkFailure string

const (
	FailMissingParams  LinkFailure = "missing_params"
	FailInvalidState   LinkFailure = "invalid_state"
	FailInvalidSession LinkFailure = "invalid_session"
	FailTokenExchange  LinkFailure = "token_exchange"
	FailProfileFetch   LinkFailure = "profile_fetch"
	FailAlreadyLinked  LinkFailure = "already_linked"
	FailNotAMember     LinkFailure = "not_a_member"
	FailInternal       LinkFailure = "oauth_failed"
)

// LinkError wraps the underlying cause with the failure state it occurred
// in. Handlers expose only the Reason.
type LinkError struct {
	Reason LinkFailure
	Err    error
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("link failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("link failed (%s)", e.Reason)
}

func (e *LinkError) Unwrap() error { return e.Err }

func failure(reason LinkFailure, err error) *LinkError {
	return &LinkError{Reason: reason, Err: err}
}

// IdentityProvider is the narrow slice of the provider API the orchestrator
// needs.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*discord.TokenResponse, error)
	FetchProfile(ctx context.Context, accessToken string) (*discord.Profile, error)
	JoinGuild(ctx context.Context, userID, accessToken string) error
	IsGuildMember(ctx context.Context, userID string) (bool, error)
}

// BalanceFetcher reads the wallet's current balance from the external
// ledger.
type BalanceFetcher interface {
	Balance(ctx context.Context, walletAddress string) (decimal.Decimal, error)
}

// RoleGranter applies and revokes entitlements in the community.
type RoleGranter interface {
	AssignRoles(ctx context.Context, accountID, walletAddress string, roleIDs []string) error
	RevokeRoles(ctx context.Context, accountID, walletAddress string) error
}

// LinkResult summarizes a completed callback for the success view.
type LinkResult struct {
	WalletAddress string
	Username      string
	GrantedRoles  []string
	CurrentRole   string
	SessionToken  string
}

// LinkService is the callback orchestrator. It consumes the provider
// callback and walks the linking state machine: consume state, consume
// session, exchange code, fetch profile and balance, compute roles, enforce
// the 1:1 link, persist, grant, and issue the site login.
type LinkService struct {
	sessions  *SessionService
	states    *StateService
	auth      *AuthService
	accounts  domain.LinkedAccountRepository
	roleStore *roles.Store
	provider  IdentityProvider
	balances  BalanceFetcher
	granter   RoleGranter
	vault     *vault.Vault
	now       func() time.Time
}

// NewLinkService wires the orchestrator's collaborators.
func NewLinkService(
	sessions *SessionService,
	states *StateService,
	auth *AuthService,
	accounts domain.LinkedAccountRepository,
	roleStore *roles.Store,
	provider IdentityProvider,
	balances BalanceFetcher,
	granter RoleGranter,
	tokenVault *vault.Vault,
) *LinkService {
	return &LinkService{
		sessions:  sessions,
		states:    states,
		auth:      auth,
		accounts:  accounts,
		roleStore: roleStore,
		provider:  provider,
		balances:  balances,
		granter:   granter,
		vault:     tokenVault,
		now:       time.Now,
	}
}

// HandleCallback runs the whole linking flow. On any failure it returns a
// *LinkError whose Reason is safe to put in a redirect; the cause is logged
// here, not propagated to the client.
func (s *LinkService) HandleCallback(ctx context.Context, code, state string) (*LinkResult, error) {
	if code == "" || state == "" {
		return nil, failure(FailMissingParams, nil)
	}

	stateRecord, err := s.states.ValidateAndConsume(ctx, state)
	if err != nil {
		return nil, failure(FailInvalidState, err)
	}

	walletAddress, err := s.sessions.ValidateAndConsume(ctx, stateRecord.SessionID)
	if err != nil {
		return nil, failure(FailInvalidSession, err)
	}

	tokens, err := s.provider.ExchangeCode(ctx, code, stateRecord.CodeVerifier)
	if err != nil {
		log.Error().Err(err).Msg("provider token exchange failed")
		return nil, failure(FailTokenExchange, err)
	}

	profile, err := s.provider.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		log.Error().Err(err).Msg("provider profile fetch failed")
		return nil, failure(FailProfileFetch, err)
	}

	previous, prevErr := s.accounts.FindByWallet(ctx, walletAddress)

	balance, err := s.balances.Balance(ctx, walletAddress)
	if err != nil {
		// Degrade to the previously stored balance rather than abort.
		// Deliberate availability-over-consistency tradeoff: roles may be
		// computed from stale data until the next refresh.
		log.Warn().Err(err).Str("wallet", walletAddress).Msg("ledger balance query failed, falling back to stored balance")
		balance = decimal.Zero
		if prevErr == nil {
			balance = previous.Balance
		}
	}

	defs, err := s.roleStore.All(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load role definitions")
		return nil, failure(FailInternal, err)
	}
	classification := roles.Classify(balance, defs)

	// 1:1 wallet <-> account. Relinking the same pair is idempotent;
	// anything else is a conflict.
	if prevErr == nil && previous.ExternalAccountID != "" && previous.ExternalAccountID != profile.ID {
		return nil, failure(FailAlreadyLinked, fmt.Errorf("wallet already linked to a different account"))
	}
	if byAccount, findErr := s.accounts.FindByExternalAccount(ctx, profile.ID); findErr == nil && byAccount.WalletAddress != walletAddress {
		return nil, failure(FailAlreadyLinked, fmt.Errorf("account already linked to a different wallet"))
	}

	encryptedAccess, err := s.vault.Encrypt(tokens.AccessToken)
	if err != nil {
		return nil, failure(FailInternal, err)
	}
	encryptedRefresh, err := s.vault.Encrypt(tokens.RefreshToken)
	if err != nil {
		return nil, failure(FailInternal, err)
	}

	now := s.now().UTC()
	account := &domain.LinkedAccount{
		WalletAddress:         walletAddress,
		ExternalAccountID:     profile.ID,
		ExternalUsername:      profile.Username,
		Balance:               balance,
		CurrentRole:           classification.CurrentRole,
		EligibleRoles:         classification.EligibleRoles,
		EncryptedAccessToken:  encryptedAccess,
		EncryptedRefreshToken: encryptedRefresh,
		ConnectedAt:           now,
		LastRoleUpdate:        now,
	}
	if err := s.accounts.Upsert(ctx, account); err != nil {
		log.Error().Err(err).Str("wallet", walletAddress).Msg("failed to persist linked account")
		return nil, failure(FailInternal, err)
	}

	// Balance dropped to zero: revoke what was granted before. Best effort.
	if balance.Sign() == 0 && prevErr == nil && previous.Balance.Sign() > 0 {
		if err := s.granter.RevokeRoles(ctx, profile.ID, walletAddress); err != nil {
			log.Warn().Err(err).Str("wallet", walletAddress).Msg("role revocation failed")
		}
	}

	// Auto-join is best effort; membership afterwards is not.
	if err := s.provider.JoinGuild(ctx, profile.ID, tokens.AccessToken); err != nil {
		log.Warn().Err(err).Str("account", profile.ID).Msg("guild auto-join failed")
	}
	member, err := s.provider.IsGuildMember(ctx, profile.ID)
	if err != nil {
		log.Error().Err(err).Str("account", profile.ID).Msg("guild membership check failed")
		return nil, failure(FailInternal, err)
	}
	if !member {
		return nil, failure(FailNotAMember, nil)
	}

	granted := []string{}
	if len(classification.EligibleRoles) > 0 {
		groupIDs, err := s.roleStore.GroupIDsFor(ctx, classification.EligibleRoles)
		if err != nil {
			log.Warn().Err(err).Msg("failed to resolve role group IDs")
		} else if len(groupIDs) > 0 {
			if err := s.granter.AssignRoles(ctx, profile.ID, walletAddress, groupIDs); err != nil {
				// Role grant is not required for OAuth completion.
				log.Warn().Err(err).Str("wallet", walletAddress).Msg("role grant failed")
			} else {
				granted = classification.EligibleRoles
			}
		}
	}

	sessionToken, err := s.auth.CreateSession(ctx, walletAddress, profile.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue login session")
		return nil, failure(FailInternal, err)
	}

	log.Info().
		Str("wallet", walletAddress).
		Str("account", profile.ID).
		Str("current_role", classification.CurrentRole).
		Msg("account linked")

	return &LinkResult{
		WalletAddress: walletAddress,
		Username:      profile.Username,
		GrantedRoles:  granted,
		CurrentRole:   classification.CurrentRole,
		SessionToken:  sessionToken,
	}, nil
}

// RefreshRoles recomputes the account's classification and persists it.
// A nil balance reuses the stored one; otherwise the given balance
// replaces it. The account is updated in place on success.
func (s *LinkService) RefreshRoles(ctx context.Context, account *domain.LinkedAccount, balance *decimal.Decimal) (*roles.Classification, error) {
	next := account.Balance
	if balance != nil {
		next = *balance
	}

	defs, err := s.roleStore.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading role definitions: %w", err)
	}
	classification := roles.Classify(next, defs)

	if err := s.accounts.UpdateRoles(ctx, account.WalletAddress, next, classification.CurrentRole, classification.EligibleRoles); err != nil {
		return nil, fmt.Errorf("persisting refreshed roles: %w", err)
	}

	account.Balance = next
	account.CurrentRole = classification.CurrentRole
	account.EligibleRoles = classification.EligibleRoles
	account.LastRoleUpdate = s.now().UTC()

	log.Info().
		Str("wallet", account.WalletAddress).
		Str("current_role", classification.CurrentRole).
		Msg("account roles refreshed")

	return &classification, nil
}
