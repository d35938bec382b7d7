package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LinkedAccount is the persisted link between a wallet address and an
// external community account, together with the last observed balance and
// the roles computed from it. WalletAddress and ExternalAccountID form a
// strict 1:1 mapping: linking fails if either side is already bound to a
// different counterpart.
type LinkedAccount struct {
	ID                    string          `bson:"_id,omitempty"`
	WalletAddress         string          `bson:"wallet_address"`
	ExternalAccountID     string          `bson:"external_account_id"`
	ExternalUsername      string          `bson:"external_username,omitempty"`
	Balance               decimal.Decimal `bson:"balance"`
	CurrentRole           string          `bson:"current_role,omitempty"`
	EligibleRoles         []string        `bson:"eligible_roles"`
	EncryptedAccessToken  string          `bson:"encrypted_access_token,omitempty"`
	EncryptedRefreshToken string          `bson:"encrypted_refresh_token,omitempty"`
	Admin                 bool            `bson:"is_admin,omitempty"`
	ConnectedAt           time.Time       `bson:"connected_at"`
	LastRoleUpdate        time.Time       `bson:"last_role_update"`
}
