// Package echo exposes the portal's HTTP surface.
package echo

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/walletgate/walletgate/domain"
	apierrors "github.com/walletgate/walletgate/errors"
	"github.com/walletgate/walletgate/ratelimit"
	"github.com/walletgate/walletgate/roles"
	"github.com/walletgate/walletgate/services"
)

const sessionCookieName = "session-token"

// AuthURLBuilder builds the provider authorization URL for an issued state.
type AuthURLBuilder interface {
	AuthorizeURL(state, codeChallenge string) string
}

// PortalAPI holds the handler dependencies.
type PortalAPI struct {
	sessions  *services.SessionService
	states    *services.StateService
	auth      *services.AuthService
	links     *services.LinkService
	roleStore *roles.Store
	provider  AuthURLBuilder
	limiter   ratelimit.Limiter
	baseURL   string
	health    func(ctx context.Context) error
}

// NewPortalAPI initializes the portal API.
func NewPortalAPI(
	sessions *services.SessionService,
	states *services.StateService,
	auth *services.AuthService,
	links *services.LinkService,
	roleStore *roles.Store,
	provider AuthURLBuilder,
	limiter ratelimit.Limiter,
	baseURL string,
	health func(ctx context.Context) error,
) *PortalAPI {
	return &PortalAPI{
		sessions:  sessions,
		states:    states,
		auth:      auth,
		links:     links,
		roleStore: roleStore,
		provider:  provider,
		limiter:   limiter,
		baseURL:   baseURL,
		health:    health,
	}
}

// RegisterRoutes registers the portal routes.
func (p *PortalAPI) RegisterRoutes(e *echo.Echo) {
	authLimit := RateLimit(p.limiter, ratelimit.ProfileAuth)
	defaultLimit := RateLimit(p.limiter, ratelimit.ProfileDefault)
	roleAssignLimit := RateLimit(p.limiter, ratelimit.ProfileRoleAssign)
	userUpdateLimit := RateLimit(p.limiter, ratelimit.ProfileUserUpdate)

	e.POST("/api/auth/session", p.CreateSessionHandler, authLimit)
	e.GET("/api/auth/url", p.AuthURLHandler, authLimit)
	e.GET("/api/auth/callback", p.CallbackHandler, authLimit)
	e.GET("/api/auth/me", p.MeHandler, defaultLimit)
	e.POST("/api/auth/logout", p.LogoutHandler, defaultLimit)

	e.GET("/api/roles", p.ListRolesHandler, defaultLimit)
	e.GET("/api/roles/check", p.CheckRoleHandler, defaultLimit)
	e.POST("/api/roles", p.CreateRoleHandler, roleAssignLimit)
	e.POST("/api/user/role", p.UpdateUserRoleHandler, userUpdateLimit)

	e.GET("/healthz", p.HealthHandler)
}

type createSessionRequest struct {
	WalletAddress string `json:"walletAddress"`
}

// CreateSessionHandler issues a one-time wallet session after the client
// asserts wallet ownership.
func (p *PortalAPI) CreateSessionHandler(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Invalid request body"))
	}

	wallet := strings.ToLower(strings.TrimSpace(req.WalletAddress))
	if !validWalletAddress(wallet) {
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Invalid wallet address format"))
	}

	sessionID, err := p.sessions.Create(c.Request().Context(), wallet, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create wallet session")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServer("Failed to create session"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"sessionId": sessionID,
	})
}

// AuthURLHandler issues an OAuth authorization URL bound to a wallet
// session. The session is peeked, not consumed; it burns in the callback.
func (p *PortalAPI) AuthURLHandler(c echo.Context) error {
	sessionID := c.QueryParam("session")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Session ID is required"))
	}

	ctx := c.Request().Context()

	wallet, err := p.sessions.Peek(ctx, sessionID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierrors.NewAuth("Invalid or expired session"))
	}

	issued, err := p.states.Issue(ctx, sessionID, wallet)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue oauth state")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServer("Failed to create authorization URL"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"authUrl": p.provider.AuthorizeURL(issued.State, issued.CodeChallenge),
	})
}

// CallbackHandler consumes the identity-provider callback. All failures
// funnel into a redirect carrying only an opaque error code.
func (p *PortalAPI) CallbackHandler(c echo.Context) error {
	code := c.QueryParam("code")
	state := c.QueryParam("state")

	result, err := p.links.HandleCallback(c.Request().Context(), code, state)
	if err != nil {
		reason := services.FailInternal
		var linkErr *services.LinkError
		if errors.As(err, &linkErr) {
			reason = linkErr.Reason
		}
		log.Error().Err(err).Str("reason", string(reason)).Msg("OAuth callback failed")
		return c.Redirect(http.StatusFound, p.baseURL+"/?error="+url.QueryEscape(string(reason)))
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    result.SessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   strings.HasPrefix(p.baseURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})

	q := url.Values{}
	q.Set("linked", "1")
	q.Set("username", result.Username)
	q.Set("wallet", result.WalletAddress)
	if len(result.GrantedRoles) > 0 {
		q.Set("roles", strings.Join(result.GrantedRoles, ","))
	}
	return c.Redirect(http.StatusFound, p.baseURL+"/?"+q.Encode())
}

// MeHandler returns the linked profile behind the login session.
func (p *PortalAPI) MeHandler(c echo.Context) error {
	account, err := p.auth.Verify(c.Request().Context(), sessionToken(c))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierrors.NewAuth("Invalid or expired session"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"walletAddress": account.WalletAddress,
		"accountId":     account.ExternalAccountID,
		"username":      account.ExternalUsername,
		"balance":       account.Balance,
		"currentRole":   account.CurrentRole,
		"eligibleRoles": account.EligibleRoles,
	})
}

// LogoutHandler deactivates the login session and clears the cookie.
func (p *PortalAPI) LogoutHandler(c echo.Context) error {
	if token := sessionToken(c); token != "" {
		if err := p.auth.Logout(c.Request().Context(), token); err != nil {
			log.Debug().Err(err).Msg("logout on unknown session")
		}
	}

	c.SetCookie(&http.Cookie{
		Name:   sessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

type roleView struct {
	Name      string          `json:"name"`
	Kind      domain.RoleKind `json:"kind"`
	Threshold decimal.Decimal `json:"threshold"`
}

// ListRolesHandler returns every role definition for the goals display.
func (p *PortalAPI) ListRolesHandler(c echo.Context) error {
	defs, err := p.roleStore.All(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list roles")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServer("Failed to list roles"))
	}

	views := make([]roleView, 0, len(defs))
	for _, r := range defs {
		views = append(views, roleView{Name: r.Name, Kind: r.Kind, Threshold: r.AmountThreshold})
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": views})
}

// CheckRoleHandler classifies a balance against the role definitions. With
// only a wallet parameter it uses the stored balance of the linked account.
func (p *PortalAPI) CheckRoleHandler(c echo.Context) error {
	ctx := c.Request().Context()

	balanceParam := c.QueryParam("balance")
	wallet := strings.ToLower(strings.TrimSpace(c.QueryParam("wallet")))

	var balance decimal.Decimal
	switch {
	case balanceParam != "":
		parsed, err := decimal.NewFromString(balanceParam)
		if err != nil || parsed.Sign() < 0 {
			return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Invalid balance format"))
		}
		balance = parsed
	case wallet != "":
		account, err := p.auth.AccountByWallet(ctx, wallet)
		if err != nil {
			return c.JSON(http.StatusNotFound, apierrors.NewNotFound("User not found"))
		}
		balance = account.Balance
	default:
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Wallet address or balance is required"))
	}

	defs, err := p.roleStore.All(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load roles for classification")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServer("Failed to check role"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"balance":        balance,
		"classification": roles.Classify(balance, defs),
	})
}

type createRoleRequest struct {
	Name            string           `json:"name"`
	Kind            domain.RoleKind  `json:"kind"`
	AmountThreshold *decimal.Decimal `json:"amountThreshold,omitempty"`
	ExternalGroupID string           `json:"externalGroupId"`
}

// CreateRoleHandler adds a role definition. Privileged: requires the
// static API key or an admin session.
func (p *PortalAPI) CreateRoleHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if err := p.auth.VerifyAdmin(ctx, apiKey(c), sessionToken(c)); err != nil {
		return c.JSON(http.StatusUnauthorized, apierrors.NewAuth("Admin access required"))
	}

	var req createRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Invalid request body"))
	}

	var (
		role domain.Role
		err  error
	)
	switch req.Kind {
	case domain.RoleKindHolder:
		role, err = domain.NewHolderRole(req.Name, req.ExternalGroupID)
	case domain.RoleKindAmount:
		if req.AmountThreshold == nil {
			return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Amount threshold is required for amount-based roles"))
		}
		role, err = domain.NewAmountRole(req.Name, req.ExternalGroupID, *req.AmountThreshold)
	default:
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation(`Kind must be either "holder" or "amount"`))
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation(err.Error()))
	}

	created, err := p.roleStore.Add(ctx, role)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Failed to create role")
		return c.JSON(http.StatusConflict, apierrors.NewConflict("Role could not be created"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"role":    roleView{Name: created.Name, Kind: created.Kind, Threshold: created.AmountThreshold},
	})
}

type updateUserRoleRequest struct {
	WalletAddress string           `json:"walletAddress"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
}

// UpdateUserRoleHandler recomputes and persists the role assignment for a
// linked wallet. Without a balance in the body the stored balance is
// reclassified; with one, the stored balance is replaced first.
func (p *PortalAPI) UpdateUserRoleHandler(c echo.Context) error {
	var req updateUserRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Invalid request body"))
	}

	wallet := strings.ToLower(strings.TrimSpace(req.WalletAddress))
	if !validWalletAddress(wallet) {
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Invalid wallet address format"))
	}
	if req.Balance != nil && req.Balance.Sign() < 0 {
		return c.JSON(http.StatusBadRequest, apierrors.NewValidation("Balance must not be negative"))
	}

	ctx := c.Request().Context()

	account, err := p.auth.AccountByWallet(ctx, wallet)
	if err != nil {
		return c.JSON(http.StatusNotFound, apierrors.NewNotFound("User not found"))
	}

	classification, err := p.links.RefreshRoles(ctx, account, req.Balance)
	if err != nil {
		log.Error().Err(err).Str("wallet", wallet).Msg("Failed to refresh user roles")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServer("Failed to update user role"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user": echo.Map{
			"walletAddress":   account.WalletAddress,
			"accountId":       account.ExternalAccountID,
			"username":        account.ExternalUsername,
			"balance":         account.Balance,
			"currentRole":     classification.CurrentRole,
			"eligibleRoles":   classification.EligibleRoles,
			"nextRole":        classification.NextRole,
			"progressPercent": classification.ProgressPercent,
		},
	})
}

// HealthHandler pings the backing store.
func (p *PortalAPI) HealthHandler(c echo.Context) error {
	if err := p.health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// validWalletAddress applies the basic bech32-style shape check: lowercase
// alphanumeric, plausible length. Ownership is asserted by the client, not
// cryptographically proven here.
func validWalletAddress(addr string) bool {
	if len(addr) < 39 || len(addr) > 100 {
		return false
	}
	for _, c := range addr {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
