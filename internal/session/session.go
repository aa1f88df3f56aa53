// Package session holds the OAuth2 session triple and its persistence boundary.
package session

import (
	"context"
)

// Session is the marketplace OAuth2 session. Empty string means "not set".
// AccessToken present means the client is considered authenticated.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

// IsZero reports whether no session field is set
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.UserID == ""
}

// Store persists the session triple between runs.
//
// The store is an opaque key-value string store: Load on an empty store
// returns a zero Session and no error. Save overwrites the whole triple,
// there is no transactional grouping of the three values.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}
