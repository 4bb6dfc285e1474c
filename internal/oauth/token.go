// ABOUTME: Token refresh and identity extraction for issued OAuth tokens
// ABOUTME: Concurrent refreshes of the same refresh token are collapsed into one call

package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Identity is what a token response says about who logged in.
type Identity struct {
	InstanceURL string
	IdentityURL string
	OrgID       string
	UserID      string
}

// IdentityFromToken reads the instance_url and id extras of a token response.
// The id URL has the form https://login.salesforce.com/id/{org}/{user}.
func IdentityFromToken(tok *oauth2.Token) (Identity, error) {
	var id Identity
	if tok == nil {
		return id, errors.New("no token")
	}

	id.InstanceURL, _ = tok.Extra("instance_url").(string)
	id.IdentityURL, _ = tok.Extra("id").(string)
	if id.InstanceURL == "" {
		return id, errors.New("token response has no instance_url")
	}
	id.InstanceURL = strings.TrimRight(id.InstanceURL, "/")

	if id.IdentityURL != "" {
		u, err := url.Parse(id.IdentityURL)
		if err != nil {
			return id, fmt.Errorf("parse identity url: %w", err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 3 && parts[0] == "id" {
			id.OrgID, id.UserID = parts[1], parts[2]
		}
	}
	return id, nil
}

// Refresh exchanges tok's refresh token for a new access token, even when tok
// has not expired yet. Concurrent calls for the same refresh token share one
// request.
func (f *Flow) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	v, err, shared := f.refreshGroup.Do(tok.RefreshToken, func() (interface{}, error) {
		stale := *tok
		stale.AccessToken = ""
		stale.Expiry = time.Unix(1, 0)
		return f.oauthConfig().TokenSource(f.clientContext(ctx), &stale).Token()
	})
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	slog.Debug("Access token refreshed", "shared", shared)

	fresh := *v.(*oauth2.Token)
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	return &fresh, nil
}

// TokenSource returns an oauth2.TokenSource that starts at tok and refreshes
// through the Flow when tok expires. onRefresh, if set, receives each new token.
func (f *Flow) TokenSource(ctx context.Context, tok *oauth2.Token, onRefresh func(*oauth2.Token)) oauth2.TokenSource {
	return &refreshingSource{flow: f, ctx: ctx, tok: tok, onRefresh: onRefresh}
}

type refreshingSource struct {
	flow      *Flow
	ctx       context.Context
	onRefresh func(*oauth2.Token)

	mu  sync.Mutex
	tok *oauth2.Token
}

func (s *refreshingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	tok := s.tok
	s.mu.Unlock()

	if tok.Valid() {
		return tok, nil
	}

	fresh, err := s.flow.Refresh(s.ctx, tok)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tok = fresh
	s.mu.Unlock()

	if s.onRefresh != nil {
		s.onRefresh(fresh)
	}
	return fresh, nil
}
