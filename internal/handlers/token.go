package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/estoquel/restocker/internal/handlers/render"
	"github.com/estoquel/restocker/internal/logger"
	"github.com/estoquel/restocker/internal/meli"
)

// DefaultTokenURL is the marketplace OAuth token endpoint
const DefaultTokenURL = "https://api.mercadolibre.com/oauth/token"

type TokenProxyConfig struct {
	// Server-held marketplace application credentials. Missing credentials
	// make every exchange fail with a configuration error.
	AppID        string
	ClientSecret string

	// Marketplace token endpoint, overridable in tests
	TokenURL string
}

// TokenProxyHandler exchanges an authorization code or refresh token for an
// access token by forwarding credentials to the marketplace token endpoint.
// Stateless, no retries: the result or error is relayed back to the caller.
type TokenProxyHandler struct {
	cfg    TokenProxyConfig
	client *http.Client
	logger logger.Logger
}

func NewTokenProxy(cfg TokenProxyConfig, l logger.Logger) *TokenProxyHandler {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}

	return &TokenProxyHandler{
		cfg:    cfg,
		client: &http.Client{},
		logger: l,
	}
}

func (h *TokenProxyHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", h.exchange)

	return mux
}

func (h *TokenProxyHandler) exchange(w http.ResponseWriter, r *http.Request) {
	type ExchangeRequest struct {
		GrantType    string `json:"grant_type" validate:"required,oneof=authorization_code refresh_token"`
		Code         string `json:"code" validate:"required_if=GrantType authorization_code"`
		RedirectURI  string `json:"redirect_uri" validate:"required_if=GrantType authorization_code"`
		RefreshToken string `json:"refresh_token" validate:"required_if=GrantType refresh_token"`

		// Accepted for compatibility but ignored: the server-held id wins
		ClientID string `json:"client_id"`
	}

	data, err := render.Decode[ExchangeRequest](w, r)
	if err != nil {
		return
	}

	if h.cfg.AppID == "" || h.cfg.ClientSecret == "" {
		h.logger.Error("Marketplace credentials not configured, set MELI_APP_ID and MELI_CLIENT_SECRET")
		render.ServiceError(w, "Server configuration error: marketplace credentials not found.", http.StatusInternalServerError)
		return
	}

	if err := render.Validate(w, data); err != nil {
		return
	}

	form := url.Values{}
	form.Set("grant_type", data.GrantType)
	form.Set("client_id", h.cfg.AppID)
	form.Set("client_secret", h.cfg.ClientSecret)

	switch data.GrantType {
	case meli.GrantAuthorizationCode:
		form.Set("code", data.Code)
		form.Set("redirect_uri", data.RedirectURI)
	case meli.GrantRefreshToken:
		form.Set("refresh_token", data.RefreshToken)
		// The marketplace does not require redirect_uri for the refresh
		// grant, but if the caller sent one it must match, so forward it.
		if data.RedirectURI != "" {
			form.Set("redirect_uri", data.RedirectURI)
		}
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		h.internalError(w, err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	h.logger.Debug("Exchanging token with the marketplace", "grant_type", data.GrantType)

	resp, err := h.client.Do(req)
	if err != nil {
		h.internalError(w, err)
		return
	}
	defer resp.Body.Close() // nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.internalError(w, err)
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.upstreamError(w, resp.StatusCode, body)
		return
	}

	// Relay the marketplace success body unchanged
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// upstreamError forwards the marketplace status code, wraps its error detail
// in a descriptive message and attaches the raw payload for caller-side
// diagnostics.
func (h *TokenProxyHandler) upstreamError(w http.ResponseWriter, status int, body []byte) {
	type UpstreamErrorResponse struct {
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	}

	var upstream struct {
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error"`
	}
	_ = json.Unmarshal(body, &upstream)

	description := "Unknown marketplace error."
	switch {
	case upstream.Message != "":
		description = upstream.Message
	case upstream.ErrorDescription != "":
		description = upstream.ErrorDescription
	case upstream.ErrorCode != "":
		description = upstream.ErrorCode
	}

	h.logger.Error("Marketplace rejected token exchange", "status", status, "error", description)

	details := json.RawMessage(body)
	if !json.Valid(body) {
		details, _ = json.Marshal(string(body))
	}

	render.JSONWithStatus(w, UpstreamErrorResponse{
		Message: "Failed to exchange token with the marketplace: " + description,
		Details: details,
	}, status)
}

func (h *TokenProxyHandler) internalError(w http.ResponseWriter, err error) {
	type InternalErrorResponse struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	h.logger.Error("Token exchange failed", "error", err)

	render.JSONWithStatus(w, InternalErrorResponse{
		Message: "Internal error while processing the token exchange.",
		Error:   err.Error(),
	}, http.StatusInternalServerError)
}
