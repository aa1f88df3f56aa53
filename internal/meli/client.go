// Package meli owns the Mercado Livre OAuth2 session: acquiring tokens through
// the token proxy, persisting them, and transparently refreshing them across
// authenticated API calls with a single retry on 401.
package meli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/estoquel/restocker/internal/apperrors"
	"github.com/estoquel/restocker/internal/logger"
	"github.com/estoquel/restocker/internal/notify"
	"github.com/estoquel/restocker/internal/session"
)

// OAuth2 grant types accepted by the token proxy
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

const (
	DefaultAuthURL = "https://auth.mercadolivre.com.br/authorization"
	DefaultAPIURL  = "https://api.mercadolibre.com"
)

type Config struct {
	// Marketplace application id. The matching secret lives in the token
	// proxy only, never here.
	ClientID string

	// Origin of the SPA the marketplace redirects back to
	Origin string

	// Token proxy endpoint that performs the actual secret-bearing exchange
	TokenProxyURL string

	// Marketplace endpoints. Defaults target production Mercado Livre;
	// tests point them at local servers.
	AuthURL string
	APIURL  string

	// Secret key to sign the OAuth state parameter. State is skipped if empty.
	SecretKey string

	HTTPClient *http.Client
}

// Client drives the marketplace authentication state machine.
//
// Session transitions only inside HandleCallback, Refresh and Logout; it is
// swapped wholesale under the mutex so the HTTP surface may share one client.
type Client struct {
	clientID string
	origin   string
	proxyURL string
	authURL  string
	apiURL   string

	state    *StateSigner // nil disables the state parameter
	store    session.Store
	notifier notify.Notifier
	logger   logger.Logger
	http     *http.Client

	mu      sync.Mutex
	session session.Session
}

func NewClient(ctx context.Context, cfg Config, store session.Store, notifier notify.Notifier, l logger.Logger) (*Client, error) {
	if store == nil || notifier == nil {
		return nil, errors.New("store and notifier must not be nil")
	}
	if cfg.TokenProxyURL == "" {
		return nil, errors.New("token proxy url must be set")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	var signer *StateSigner
	if cfg.SecretKey != "" {
		signer = NewStateSigner(cfg.SecretKey)
	}

	c := &Client{
		clientID: cfg.ClientID,
		origin:   cfg.Origin,
		proxyURL: cfg.TokenProxyURL,
		authURL:  authURL,
		apiURL:   apiURL,
		state:    signer,
		store:    store,
		notifier: notifier,
		logger:   l,
		http:     httpClient,
	}

	// Pick up the session persisted by a previous run. A failing store is
	// not fatal: the client starts unauthenticated.
	sess, err := store.Load(ctx)
	if err != nil {
		l.Warn("Failed to load persisted session, starting unauthenticated", "error", err)
		sess = session.Session{}
	}
	c.session = sess

	return c, nil
}

// IsAuthenticated reports whether an access token is held. No side effects.
func (c *Client) IsAuthenticated() bool {
	return c.currentSession().AccessToken != ""
}

// UserID returns the marketplace user id of the session, empty if unknown
func (c *Client) UserID() string {
	return c.currentSession().UserID
}

// RedirectURI derives the OAuth callback uri from the configured origin
func (c *Client) RedirectURI() string {
	return DeriveRedirectURI(c.origin)
}

// AuthURL builds the marketplace authorization URL the SPA should open.
// Fails without side effects (beyond an error notification) when the client
// id is missing or the redirect uri cannot be determined.
func (c *Client) AuthURL() (string, error) {
	if c.clientID == "" {
		c.notifier.Notify(notify.TypeError, "Marketplace client id is missing. Check the configuration.")
		return "", apperrors.ErrClientIDMissing
	}

	redirectURI := c.RedirectURI()
	if redirectURI == RedirectURIPlaceholder {
		c.notifier.Notify(notify.TypeError, "The redirect uri could not be determined. Set the application origin and register it at the marketplace.")
		return "", apperrors.ErrRedirectURIBroken
	}

	authURL := c.authURL + "?response_type=code&client_id=" + url.QueryEscape(c.clientID) + "&redirect_uri=" + url.QueryEscape(redirectURI)

	if c.state != nil {
		state, err := c.state.Sign()
		if err != nil {
			c.notifier.Notify(notify.TypeError, "Failed to prepare the authorization request.")
			return "", fmt.Errorf("error while signing auth state. Err: %w", err)
		}
		authURL += "&state=" + url.QueryEscape(state)
	}

	c.notifier.Notify(notify.TypeInfo, "Redirecting to the marketplace for authorization...")
	return authURL, nil
}

// HandleCallback exchanges the authorization code for tokens via the proxy.
// Never returns an error: callers observe the boolean result plus the
// notification side effect.
func (c *Client) HandleCallback(ctx context.Context, code string, state string) bool {
	redirectURI := c.RedirectURI()
	if redirectURI == RedirectURIPlaceholder {
		c.notifier.Notify(notify.TypeError, "The redirect uri is invalid. Authentication cannot proceed.")
		return false
	}

	// State is verified when we issued one and the callback carries it.
	// Absent state is tolerated for manually driven flows.
	if c.state != nil && state != "" {
		if err := c.state.Verify(state); err != nil {
			c.logger.Warn("Callback state rejected", "error", err)
			c.notifier.Notify(notify.TypeError, "Authentication error: the authorization response could not be trusted.")
			return false
		}
	}

	resp, status, err := c.exchange(ctx, exchangeRequest{
		GrantType:   GrantAuthorizationCode,
		Code:        code,
		RedirectURI: redirectURI,
	})
	if err != nil {
		c.notifier.Notify(notify.TypeError, fmt.Sprintf("Communication error: %v", err))
		return false
	}

	if status != http.StatusOK || resp.AccessToken == "" {
		msg := resp.errorMessage("Authentication via backend failed.")
		c.logger.Error("Authorization code exchange rejected", "status", status, "message", msg)
		c.notifier.Notify(notify.TypeError, "Authentication error: "+msg)
		return false
	}

	c.setSession(ctx, session.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.UserID.String(),
	})
	c.notifier.Notify(notify.TypeSuccess, "Connected to the marketplace.")
	return true
}

// Refresh exchanges the held refresh token for a new access token.
// Any failure clears the session: a dead refresh token means the user must
// authenticate from scratch.
func (c *Client) Refresh(ctx context.Context) bool {
	sess := c.currentSession()
	if sess.RefreshToken == "" {
		c.notifier.Notify(notify.TypeError, "Session expired. Refresh token not found.")
		c.Logout(ctx)
		return false
	}

	redirectURI := c.RedirectURI()
	if redirectURI == RedirectURIPlaceholder {
		c.notifier.Notify(notify.TypeError, "The redirect uri is invalid. Session cannot be renewed.")
		c.Logout(ctx)
		return false
	}

	resp, status, err := c.exchange(ctx, exchangeRequest{
		GrantType:    GrantRefreshToken,
		RefreshToken: sess.RefreshToken,
		ClientID:     c.clientID,
		RedirectURI:  redirectURI,
	})
	if err != nil {
		c.notifier.Notify(notify.TypeError, fmt.Sprintf("Session renewal error: %v", err))
		c.Logout(ctx)
		return false
	}

	if status != http.StatusOK || resp.AccessToken == "" {
		msg := resp.errorMessage("Failed to renew the session.")
		c.notifier.Notify(notify.TypeError, "Session renewal error: "+msg+" Please reconnect.")
		c.Logout(ctx)
		return false
	}

	// Access token is always replaced. Refresh token and user id are only
	// replaced when the marketplace reissues them: reissue is optional for
	// the refresh grant.
	sess.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		sess.RefreshToken = resp.RefreshToken
	}
	if uid := resp.UserID.String(); uid != "" {
		sess.UserID = uid
	}

	c.setSession(ctx, sess)
	c.notifier.Notify(notify.TypeSuccess, "Session renewed.")
	return true
}

// Logout clears the session in memory and in the store. Idempotent, no
// network calls.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	c.session = session.Session{}
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("Failed to clear persisted session", "error", err)
	}
}

// request is the authenticated request wrapper: attaches the bearer token and
// retries exactly once after a 401-triggered refresh. The parsed JSON body is
// decoded into out.
func (c *Client) request(ctx context.Context, rawurl string, out any) error {
	token := c.currentSession().AccessToken
	if token == "" {
		c.notifier.Notify(notify.TypeError, "Access token not available. Try reconnecting.")
		return apperrors.ErrTokenUnavailable
	}

	resp, err := c.doAuthenticated(ctx, rawurl, token)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()

		c.notifier.Notify(notify.TypeInfo, "Session expired. Renewing...")
		if !c.Refresh(ctx) {
			return apperrors.ErrSessionInvalid
		}

		resp, err = c.doAuthenticated(ctx, rawurl, c.currentSession().AccessToken)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Message string `json:"message"`
		}
		msg := fmt.Sprintf("HTTP error %d", resp.StatusCode)
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
			msg = body.Message
		}
		return newAPIError(resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) doAuthenticated(ctx context.Context, rawurl string, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return c.http.Do(req)
}

// exchangeRequest is the JSON payload the token proxy accepts
type exchangeRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
}

// tokenResponse covers both the success and the error shapes the proxy
// relays. The marketplace user_id is numeric, hence json.Number.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	UserID       json.Number `json:"user_id"`

	Message          string `json:"message"`
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          struct {
		ErrorDescription string `json:"error_description"`
	} `json:"details"`
}

// errorMessage picks the most specific upstream error available. The priority
// chain details.error_description, error, message is an external contract:
// the upstream error shape is not controlled by this system.
func (r tokenResponse) errorMessage(fallback string) string {
	switch {
	case r.Details.ErrorDescription != "":
		return r.Details.ErrorDescription
	case r.ErrorCode != "":
		return r.ErrorCode
	case r.Message != "":
		return r.Message
	}
	return fallback
}

func (c *Client) exchange(ctx context.Context, payload exchangeRequest) (tokenResponse, int, error) {
	var tr tokenResponse

	body, err := json.Marshal(payload)
	if err != nil {
		return tr, 0, fmt.Errorf("failed to encode exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyURL, bytes.NewReader(body))
	if err != nil {
		return tr, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return tr, 0, fmt.Errorf("failed to reach token proxy: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return tr, resp.StatusCode, fmt.Errorf("failed to decode token proxy response: %w", err)
	}

	c.logger.Debug("Token proxy response", "grant_type", payload.GrantType, "status", resp.StatusCode)
	return tr, resp.StatusCode, nil
}

func (c *Client) currentSession() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// setSession swaps the session wholesale and persists it. Persisting is a
// fire-and-forget overwrite: a failing store is logged, not propagated.
func (c *Client) setSession(ctx context.Context, sess session.Session) {
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	if err := c.store.Save(ctx, sess); err != nil {
		c.logger.Error("Failed to persist session", "error", err)
	}
}
