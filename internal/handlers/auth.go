package handlers

import (
	"context"
	"net/http"

	"github.com/estoquel/restocker/internal/handlers/render"
)

// marketplaceAuth is the slice of the marketplace client the auth surface
// needs. Auth flows report success as booleans: failures already produced a
// user notification on the client side.
type marketplaceAuth interface {
	IsAuthenticated() bool
	UserID() string
	AuthURL() (string, error)
	HandleCallback(ctx context.Context, code string, state string) bool
	Refresh(ctx context.Context) bool
	Logout(ctx context.Context)
}

type AuthHandler struct {
	client marketplaceAuth
}

func NewAuth(client marketplaceAuth) *AuthHandler {
	return &AuthHandler{client: client}
}

func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /url", h.authURL)
	mux.HandleFunc("POST /callback", h.callback)
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("GET /status", h.status)
	mux.HandleFunc("POST /logout", h.logout)

	return mux
}

func (h *AuthHandler) authURL(w http.ResponseWriter, r *http.Request) {
	type AuthURLResponse struct {
		AuthURL string `json:"auth_url"`
	}

	authURL, err := h.client.AuthURL()
	if err != nil {
		render.ServiceError(w, "Authorization is not configured", http.StatusConflict)
		return
	}

	render.JSON(w, AuthURLResponse{AuthURL: authURL})
}

func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	type CallbackRequest struct {
		Code  string `json:"code" validate:"required"`
		State string `json:"state"`
	}
	type CallbackSuccessResponse struct {
		Authenticated bool   `json:"authenticated"`
		UserID        string `json:"user_id"`
	}

	data, err := render.BindAndValidate[CallbackRequest](w, r)
	if err != nil {
		return
	}

	if !h.client.HandleCallback(r.Context(), data.Code, data.State) {
		render.ServiceError(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	render.JSON(w, CallbackSuccessResponse{Authenticated: true, UserID: h.client.UserID()})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshSuccessResponse struct {
		Message string `json:"message"`
	}

	if !h.client.Refresh(r.Context()) {
		render.ServiceError(w, "Session could not be renewed", http.StatusUnauthorized)
		return
	}

	render.JSON(w, RefreshSuccessResponse{Message: "Session renewed successfully"})
}

func (h *AuthHandler) status(w http.ResponseWriter, r *http.Request) {
	type StatusResponse struct {
		Authenticated bool   `json:"authenticated"`
		UserID        string `json:"user_id,omitempty"`
	}

	render.JSON(w, StatusResponse{
		Authenticated: h.client.IsAuthenticated(),
		UserID:        h.client.UserID(),
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.client.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
