package telephony

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const tokenPath = "/restapi/oauth/token"

// refreshableSource hands out bearer tokens and can be told the current one
// was rejected.
type refreshableSource interface {
	oauth2.TokenSource
	Invalidate()
}

// refreshTokenSource runs the refresh_token grant against the RingCentral
// token endpoint. RingCentral rotates refresh tokens and the previous one
// stops working, so the latest one is kept for the next exchange and written
// to the store when there is one.
type refreshTokenSource struct {
	conf  *oauth2.Config
	ctx   context.Context
	store TokenStore
	seed  string

	mu  sync.Mutex
	tok *oauth2.Token
}

func newRefreshTokenSource(ctx context.Context, serverURL, clientID, clientSecret, refreshToken string, hc *http.Client) *refreshTokenSource {
	if hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	return &refreshTokenSource{
		seed: refreshToken,
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  strings.TrimRight(serverURL, "/") + tokenPath,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		ctx: ctx,
		tok: &oauth2.Token{RefreshToken: refreshToken},
	}
}

func (s *refreshTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok.Valid() {
		return s.tok, nil
	}
	if s.tok.RefreshToken == "" {
		return nil, eris.New("telephony: no refresh token configured")
	}

	expired := &oauth2.Token{RefreshToken: s.tok.RefreshToken, Expiry: time.Unix(1, 0)}
	tok, err := s.conf.TokenSource(s.ctx, expired).Token()
	if err != nil {
		return nil, eris.Wrap(err, "telephony: refresh access token")
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = s.tok.RefreshToken
	}
	rotated := tok.RefreshToken != s.tok.RefreshToken
	s.tok = tok
	if rotated && s.store != nil {
		// The access token is good either way; a failed save only costs the
		// next process its refresh.
		stored := StoredToken{Seed: s.seed, RefreshToken: tok.RefreshToken, UpdatedAt: time.Now()}
		if err := s.store.SaveRefreshToken(s.ctx, s.conf.ClientID, stored); err != nil {
			zap.L().Error("telephony refresh token not persisted", zap.Error(err))
		}
	}
	return tok, nil
}

// restore replaces the configured refresh token with the stored one when the
// stored chain descends from the same seed.
func (s *refreshTokenSource) restore(ctx context.Context, store TokenStore) error {
	s.store = store
	stored, ok, err := store.LoadRefreshToken(ctx, s.conf.ClientID)
	if err != nil {
		return err
	}
	if !ok || stored.RefreshToken == "" {
		return nil
	}
	if s.seed != "" && stored.Seed != s.seed {
		zap.L().Info("configured refresh token changed, ignoring stored token")
		return nil
	}
	s.mu.Lock()
	s.tok = &oauth2.Token{RefreshToken: stored.RefreshToken}
	s.mu.Unlock()
	return nil
}

func (s *refreshTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = &oauth2.Token{RefreshToken: s.tok.RefreshToken}
}

// CurrentRefreshToken returns the latest rotated refresh token.
func (s *refreshTokenSource) CurrentRefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok.RefreshToken
}

// staticSource serves a fixed access token. Invalidate is a no-op, so a 401
// surfaces as ErrUnauthorized after the single retry.
type staticSource struct {
	oauth2.TokenSource
}

func (staticSource) Invalidate() {}
