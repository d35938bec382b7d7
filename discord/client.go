// Package discord is the identity-provider client: OAuth2 code exchange
// with PKCE, profile lookup, and guild membership operations.
package discord

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Config carries the provider application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	BotToken     string
	GuildID      string
	APIBaseURL   string // e.g. https://discord.com/api
	RedirectURI  string
}

// Client talks to the provider's REST API.
type Client struct {
	http *resty.Client
	cfg  Config
}

// New creates a provider client with sane timeouts.
func New(cfg Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.APIBaseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second)

	return &Client{http: httpClient, cfg: cfg}
}

// TokenResponse is the provider's token-exchange payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Profile is the subset of the provider account we persist.
type Profile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// AuthorizeURL builds the authorization URL the client is redirected to,
// carrying the CSRF state and the S256 PKCE challenge.
func (c *Client) AuthorizeURL(state, codeChallenge string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "identify guilds.join")
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")

	return c.cfg.APIBaseURL + "/oauth2/authorize?" + q.Encode()
}

// ExchangeCode swaps the authorization code (plus the PKCE verifier) for an
// access token.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	var token TokenResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     c.cfg.ClientID,
			"client_secret": c.cfg.ClientSecret,
			"grant_type":    "authorization_code",
			"code":          code,
			"redirect_uri":  c.cfg.RedirectURI,
			"code_verifier": codeVerifier,
		}).
		SetResult(&token).
		Post("/oauth2/token")
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Msg("provider token exchange rejected")
		return nil, fmt.Errorf("token exchange failed with status %d", resp.StatusCode())
	}

	return &token, nil
}

// FetchProfile returns the account behind the access token.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var profile Profile

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&profile).
		Get("/users/@me")
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Msg("provider profile fetch rejected")
		return nil, fmt.Errorf("profile fetch failed with status %d", resp.StatusCode())
	}

	return &profile, nil
}

// JoinGuild adds the user to the configured guild using their access token.
// The caller treats failure as non-fatal.
func (c *Client) JoinGuild(ctx context.Context, userID, accessToken string) error {
	if c.cfg.GuildID == "" {
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bot "+c.cfg.BotToken).
		SetBody(map[string]string{"access_token": accessToken}).
		Put(fmt.Sprintf("/guilds/%s/members/%s", c.cfg.GuildID, userID))
	if err != nil {
		return fmt.Errorf("guild join request failed: %w", err)
	}
	// 201 = added, 204 = already a member.
	if resp.IsError() {
		return fmt.Errorf("guild join failed with status %d", resp.StatusCode())
	}
	return nil
}

// IsGuildMember reports whether the user belongs to the configured guild.
func (c *Client) IsGuildMember(ctx context.Context, userID string) (bool, error) {
	if c.cfg.GuildID == "" {
		return true, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bot "+c.cfg.BotToken).
		Get(fmt.Sprintf("/guilds/%s/members/%s", c.cfg.GuildID, userID))
	if err != nil {
		return false, fmt.Errorf("guild member request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, fmt.Errorf("guild member check failed with status %d", resp.StatusCode())
	}
	return true, nil
}
