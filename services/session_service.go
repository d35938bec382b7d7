package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/walletgate/walletgate/domain"
)

// ErrInvalidSession covers every session consume failure: unknown ID,
// malformed ID, expired, or already used. Callers get no finer detail.
var ErrInvalidSession = errors.New("invalid or expired session")

// SessionService is the wallet-session ledger: it issues the one-time
// tokens that bind a wallet address to an OAuth linking attempt.
type SessionService struct {
	repo domain.WalletSessionRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewSessionService creates the session ledger with the given session TTL.
func NewSessionService(repo domain.WalletSessionRepository, ttl time.Duration) *SessionService {
	return &SessionService{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the configured session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create issues a new one-time session for the wallet. Globally expired
// sessions are garbage-collected opportunistically after the insert.
func (s *SessionService) Create(ctx context.Context, walletAddress, ip, userAgent string) (string, error) {
	token, err := newSecureToken()
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	session := &domain.WalletSession{
		SessionID:     token,
		WalletAddress: walletAddress,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
		Used:          false,
		IPAddress:     ip,
		UserAgent:     userAgent,
	}

	if err := s.repo.Store(ctx, session); err != nil {
		return "", err
	}

	// Best-effort GC; a failure here never fails the create.
	if err := s.repo.DeleteExpired(ctx, now); err != nil {
		log.Warn().Err(err).Msg("failed to garbage-collect expired wallet sessions")
	}

	return token, nil
}

// ValidateAndConsume burns the session and returns its wallet address. The
// underlying conditional update guarantees at most one success per session
// ID, so a racing duplicate callback observes ErrInvalidSession.
func (s *SessionService) ValidateAndConsume(ctx context.Context, sessionID string) (string, error) {
	if !isValidToken(sessionID) {
		return "", ErrInvalidSession
	}

	session, err := s.repo.Consume(ctx, sessionID, s.now().UTC())
	if err != nil {
		log.Debug().Err(err).Msg("wallet session consume failed")
		return "", ErrInvalidSession
	}
	return session.WalletAddress, nil
}

// Peek validates the session without consuming it, for pre-flight checks
// that must not burn the token.
func (s *SessionService) Peek(ctx context.Context, sessionID string) (string, error) {
	if !isValidToken(sessionID) {
		return "", ErrInvalidSession
	}

	session, err := s.repo.Peek(ctx, sessionID, s.now().UTC())
	if err != nil {
		return "", ErrInvalidSession
	}
	return session.WalletAddress, nil
}

// Cleanup removes expired sessions and consumed sessions older than one
// hour.
func (s *SessionService) Cleanup(ctx context.Context) error {
	now := s.now().UTC()
	if err := s.repo.DeleteExpired(ctx, now); err != nil {
		return err
	}
	return s.repo.DeleteUsedBefore(ctx, now.Add(-time.Hour))
}
