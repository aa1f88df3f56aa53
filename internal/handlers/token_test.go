package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estoquel/restocker/internal/logger"
)

func TestTokenProxyHandler(t *testing.T) {
	// serve spins up the proxy against the given marketplace stand-in
	serve := func(t *testing.T, cfg TokenProxyConfig, upstream http.HandlerFunc) *httptest.Server {
		t.Helper()

		if upstream != nil {
			up := httptest.NewServer(upstream)
			t.Cleanup(up.Close)
			cfg.TokenURL = up.URL
		}

		h := NewTokenProxy(cfg, logger.NewNoOpLogger())
		srv := httptest.NewServer(h.Handler())
		t.Cleanup(srv.Close)
		return srv
	}

	configured := TokenProxyConfig{AppID: "app-id", ClientSecret: "app-secret"}

	post := func(t *testing.T, srv *httptest.Server, body string) (*http.Response, string) {
		t.Helper()

		resp, err := http.Post(srv.URL+"/token", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		return resp, string(raw)
	}

	t.Run("rejects non-POST", func(t *testing.T) {
		srv := serve(t, configured, nil)

		resp, err := http.Get(srv.URL + "/token")
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("rejects unparsable body", func(t *testing.T) {
		srv := serve(t, configured, nil)

		resp, body := post(t, srv, "not-json")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "decoding_failed")
	})

	t.Run("rejects missing parameters", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"missing grant type", `{}`},
			{"unknown grant type", `{"grant_type": "password"}`},
			{"authorization code without code", `{"grant_type": "authorization_code", "redirect_uri": "https://app.test/"}`},
			{"authorization code without redirect uri", `{"grant_type": "authorization_code", "code": "abc"}`},
			{"refresh without refresh token", `{"grant_type": "refresh_token"}`},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				srv := serve(t, configured, nil)

				resp, body := post(t, srv, tc.body)
				require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "unexpected code. Body: %s", body)
				assert.Contains(t, body, "validation_failed")
			})
		}
	})

	t.Run("fails with configuration error without credentials", func(t *testing.T) {
		srv := serve(t, TokenProxyConfig{}, nil)

		resp, body := post(t, srv, `{"grant_type": "refresh_token", "refresh_token": "R"}`)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, body, "configuration error")
	})

	t.Run("forwards credentials and grant fields upstream", func(t *testing.T) {
		var form url.Values

		srv := serve(t, configured, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			form = r.PostForm

			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token": "A"}`))
		})

		resp, _ := post(t, srv, `{"grant_type": "authorization_code", "code": "the-code", "redirect_uri": "https://app.test/"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "app-id", form.Get("client_id"))
		assert.Equal(t, "app-secret", form.Get("client_secret"))
		assert.Equal(t, "the-code", form.Get("code"))
		assert.Equal(t, "https://app.test/", form.Get("redirect_uri"))
	})

	t.Run("refresh grant omits redirect uri unless sent", func(t *testing.T) {
		var form url.Values

		srv := serve(t, configured, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			form = r.PostForm

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token": "A"}`))
		})

		resp, _ := post(t, srv, `{"grant_type": "refresh_token", "refresh_token": "R"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, "R", form.Get("refresh_token"))
		assert.False(t, form.Has("redirect_uri"))
	})

	t.Run("relays success body unchanged", func(t *testing.T) {
		srv := serve(t, configured, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated) // any 2xx relays as 200
			_, _ = w.Write([]byte(`{"access_token": "A", "refresh_token": "R", "user_id": 7, "scope": "offline_access read"}`))
		})

		resp, body := post(t, srv, `{"grant_type": "refresh_token", "refresh_token": "R"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{
			"access_token": "A",
			"refresh_token": "R",
			"user_id": 7,
			"scope": "offline_access read"
		}`, body)
	})

	t.Run("forwards upstream error status and detail", func(t *testing.T) {
		srv := serve(t, configured, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error": "invalid_grant", "error_description": "authorization code expired", "status": 403}`))
		})

		resp, body := post(t, srv, `{"grant_type": "authorization_code", "code": "expired", "redirect_uri": "https://app.test/"}`)
		require.Equal(t, http.StatusForbidden, resp.StatusCode, "marketplace status should be forwarded")
		assert.JSONEq(t, `{
			"message": "Failed to exchange token with the marketplace: authorization code expired",
			"details": {"error": "invalid_grant", "error_description": "authorization code expired", "status": 403}
		}`, body)
	})

	t.Run("wraps non-json upstream errors", func(t *testing.T) {
		srv := serve(t, configured, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>gateway error</html>"))
		})

		resp, body := post(t, srv, `{"grant_type": "refresh_token", "refresh_token": "R"}`)
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Contains(t, body, "Unknown marketplace error")
		assert.Contains(t, body, "gateway error")
	})

	t.Run("converts transport failures to internal errors", func(t *testing.T) {
		dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		dead.Close() // unreachable on purpose

		cfg := configured
		cfg.TokenURL = dead.URL
		srv := serve(t, cfg, nil)

		resp, body := post(t, srv, `{"grant_type": "refresh_token", "refresh_token": "R"}`)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, body, "Internal error")
	})
}
