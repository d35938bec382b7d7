package domain

import "time"

// OAuthState binds an identity-provider authorization request to a wallet
// session. The state value is the CSRF token round-tripped through the
// provider; the code verifier is the PKCE secret kept server-side until the
// token exchange. Single-use, like the session it references.
type OAuthState struct {
	ID            string    `bson:"_id,omitempty"`
	State         string    `bson:"state"`
	SessionID     string    `bson:"session_id"`
	WalletAddress string    `bson:"wallet_address"`
	CodeVerifier  string    `bson:"code_verifier"`
	CreatedAt     time.Time `bson:"created_at"`
	ExpiresAt     time.Time `bson:"expires_at"`
	Used          bool      `bson:"used"`
	UsedAt        time.Time `bson:"used_at,omitempty"`
}
