// Package rolebot calls the external role-grant service that applies
// entitlements inside the community. Calls are idempotent from the portal's
// perspective: repeating the same role set is safe.
package rolebot

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to the role-grant service.
type Client struct {
	http *resty.Client
}

// New creates a role-grant client authenticated by a static API key.
func New(baseURL, apiKey string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-API-Key", apiKey).
		SetTimeout(10 * time.Second)

	return &Client{http: httpClient}
}

type assignRequest struct {
	AccountID     string   `json:"accountId"`
	WalletAddress string   `json:"walletAddress"`
	RoleIDs       []string `json:"roleExternalIds"`
}

type revokeRequest struct {
	AccountID     string `json:"accountId"`
	WalletAddress string `json:"walletAddress"`
}

// AssignRoles grants the full eligible set in one call.
func (c *Client) AssignRoles(ctx context.Context, accountID, walletAddress string, roleIDs []string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(assignRequest{
			AccountID:     accountID,
			WalletAddress: walletAddress,
			RoleIDs:       roleIDs,
		}).
		Post("/assign-roles")
	if err != nil {
		return fmt.Errorf("role assignment request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("role assignment failed with status %d", resp.StatusCode())
	}
	return nil
}

// RevokeRoles removes previously granted roles, typically after a balance
// drops to zero.
func (c *Client) RevokeRoles(ctx context.Context, accountID, walletAddress string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(revokeRequest{
			AccountID:     accountID,
			WalletAddress: walletAddress,
		}).
		Post("/revoke-roles")
	if err != nil {
		return fmt.Errorf("role revocation request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("role revocation failed with status %d", resp.StatusCode())
	}
	return nil
}
