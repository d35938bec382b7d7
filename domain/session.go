package domain

import "time"

// SessionTokenLength is the hex length of every opaque token issued by the
// portal (32 random bytes).
const SessionTokenLength = 64

// WalletSession is the short-lived, one-time-use record binding a wallet
// address to an in-flight account-linking attempt. It is created when the
// client asserts wallet ownership and consumed exactly once during the
// provider callback.
type WalletSession struct {
	ID            string    `bson:"_id,omitempty"`
	SessionID     string    `bson:"session_id"`
	WalletAddress string    `bson:"wallet_address"`
	CreatedAt     time.Time `bson:"created_at"`
	ExpiresAt     time.Time `bson:"expires_at"`
	Used          bool      `bson:"used"`
	UsedAt        time.Time `bson:"used_at,omitempty"`
	IPAddress     string    `bson:"ip_address,omitempty"`
	UserAgent     string    `bson:"user_agent,omitempty"`
}

// UserSession is the site login session issued after a successful OAuth
// callback. Unlike WalletSession it is multi-use until it expires or is
// deactivated by logout.
type UserSession struct {
	ID                string    `bson:"_id,omitempty"`
	Token             string    `bson:"token"`
	WalletAddress     string    `bson:"wallet_address"`
	ExternalAccountID string    `bson:"external_account_id"`
	CreatedAt         time.Time `bson:"created_at"`
	ExpiresAt         time.Time `bson:"expires_at"`
	Active            bool      `bson:"active"`
}
