package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/walletgate/walletgate/domain"
)

// ErrInvalidState covers every state consume failure, mirroring
// ErrInvalidSession.
var ErrInvalidState = errors.New("invalid or expired oauth state")

// StateService is the OAuth-state ledger: it issues the CSRF state and PKCE
// verifier that bind a provider authorization request to a wallet session.
type StateService struct {
	repo       domain.OAuthStateRepository
	ttl        time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// NewStateService creates the state ledger. The state TTL is clamped to the
// session TTL so a state can never outlive the session it depends on.
func NewStateService(repo domain.OAuthStateRepository, ttl, sessionTTL time.Duration) *StateService {
	if ttl > sessionTTL {
		log.Warn().
			Dur("state_ttl", ttl).
			Dur("session_ttl", sessionTTL).
			Msg("oauth state TTL exceeds session TTL, clamping")
		ttl = sessionTTL
	}
	return &StateService{
		repo:       repo,
		ttl:        ttl,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// IssuedState is the pair of secrets produced per authorization request:
// the state round-trips through the provider, the challenge goes into the
// authorize URL, and the verifier stays server-side until token exchange.
type IssuedState struct {
	State         string
	CodeVerifier  string
	CodeChallenge string
}

// Issue generates two independent high-entropy secrets bound to the
// session, persists them, and garbage-collects expired states.
func (s *StateService) Issue(ctx context.Context, sessionID, walletAddress string) (*IssuedState, error) {
	state, err := newSecureToken()
	if err != nil {
		return nil, err
	}
	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := &domain.OAuthState{
		State:         state,
		SessionID:     sessionID,
		WalletAddress: walletAddress,
		CodeVerifier:  verifier,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
		Used:          false,
	}

	if err := s.repo.Store(ctx, record); err != nil {
		return nil, err
	}

	if err := s.repo.DeleteExpired(ctx, now); err != nil {
		log.Warn().Err(err).Msg("failed to garbage-collect expired oauth states")
	}

	return &IssuedState{
		State:         state,
		CodeVerifier:  verifier,
		CodeChallenge: challengeS256(verifier),
	}, nil
}

// ValidateAndConsume burns the state and returns its record, with the same
// at-most-once contract as session consumption.
func (s *StateService) ValidateAndConsume(ctx context.Context, state string) (*domain.OAuthState, error) {
	if !isValidToken(state) {
		return nil, ErrInvalidState
	}

	record, err := s.repo.Consume(ctx, state, s.now().UTC())
	if err != nil {
		log.Debug().Err(err).Msg("oauth state consume failed")
		return nil, ErrInvalidState
	}
	return record, nil
}
