// ABOUTME: Current user account model and its OAuth credentials
// ABOUTME: Shared by the OAuth flow, the SDK facade and the TUI account modal

package account

import (
	"errors"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrNoAccount is returned when no user is logged in.
	ErrNoAccount = errors.New("no current user account")
)

// Account is the logged-in user together with the tokens issued for it.
type Account struct {
	UserID      string `json:"user_id"`
	OrgID       string `json:"org_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`

	LoginURL    string `json:"login_url"`
	InstanceURL string `json:"instance_url"`
	IdentityURL string `json:"identity_url,omitempty"`

	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Token returns the account credentials as an oauth2 token.
func (a *Account) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		TokenType:    a.TokenType,
		Expiry:       a.Expiry,
	}
}

// SetToken copies refreshed credentials into the account. An empty refresh
// token in tok keeps the existing one, since refresh grants usually omit it.
func (a *Account) SetToken(tok *oauth2.Token) {
	a.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		a.RefreshToken = tok.RefreshToken
	}
	if tok.TokenType != "" {
		a.TokenType = tok.TokenType
	}
	a.Expiry = tok.Expiry
}

// SameUser reports whether a and b identify the same user in the same org.
// Two nil accounts are the same; nil and non-nil are not.
func SameUser(a, b *Account) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.OrgID == b.OrgID && a.UserID == b.UserID
}

// Label is the display name for headers and prompts.
func (a *Account) Label() string {
	if a.Username != "" {
		return a.Username
	}
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.UserID
}

func (a *Account) clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
