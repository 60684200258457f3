package spotify

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/jukebox/internal/app/credential"
)

// PlaybackScopes are the scopes a Connect device session needs.
var PlaybackScopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeStreaming,
}

// AuthConfig represents Spotify OAuth configuration.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // Only needed for the authorization-code flow
}

// NewOAuth creates an authenticator requesting the playback scopes.
func NewOAuth(cfg AuthConfig) *spotifyauth.Authenticator {
	opts := []spotifyauth.AuthenticatorOption{
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(PlaybackScopes...),
	}
	if cfg.RedirectURL != "" {
		opts = append(opts, spotifyauth.WithRedirectURL(cfg.RedirectURL))
	}
	return spotifyauth.New(opts...)
}

// tokenRefresher is the part of spotifyauth.Authenticator the login exchange uses.
type tokenRefresher interface {
	RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// Authenticator exchanges the stored refresh token for an access token.
type Authenticator struct {
	auth  tokenRefresher
	store credential.Store
}

// NewAuthenticator creates an authenticator backed by store.
func NewAuthenticator(cfg AuthConfig, store credential.Store) *Authenticator {
	return &Authenticator{
		auth:  NewOAuth(cfg),
		store: store,
	}
}

// Login refreshes the access token and writes it to the credential store.
// A rotated refresh token replaces the stored one.
func (a *Authenticator) Login(ctx context.Context) error {
	refresh, ok := a.store.Get(ctx, credential.SpotifyRefreshToken)
	if !ok {
		return errors.New("no refresh token")
	}

	token, err := a.auth.RefreshToken(ctx, &oauth2.Token{RefreshToken: refresh})
	if err != nil {
		return errors.Wrap(err, "failed to refresh token")
	}
	if token.AccessToken == "" {
		return errors.New("token endpoint returned no access token")
	}

	if err := a.store.Set(ctx, credential.SpotifyAccessToken, token.AccessToken); err != nil {
		return errors.Wrap(err, "failed to store access token")
	}
	if token.RefreshToken != "" && token.RefreshToken != refresh {
		if err := a.store.Set(ctx, credential.SpotifyRefreshToken, token.RefreshToken); err != nil {
			return errors.Wrap(err, "failed to store refresh token")
		}
		zlog.Debug().Msg("spotify: refresh token rotated")
	}

	zlog.Debug().Msgf("spotify: access token refreshed: expiry=%s", token.Expiry.Format("15:04:05"))
	return nil
}
