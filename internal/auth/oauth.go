// Package auth implements the Google OAuth login flow and the cookie-session
// HTTP endpoints surrounding the chat hub.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/gsalazar/workchat/internal/domain"
)

// GoogleUser represents user info returned from Google's v3 userinfo endpoint.
type GoogleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
}

// Identity maps the Google payload to a chat identity. Accounts without a
// profile name fall back to the local part of the email, so every user has
// a usable label before they pick a display name.
func (u *GoogleUser) Identity() domain.Identity {
	name := u.Name
	if name == "" {
		name, _, _ = strings.Cut(u.Email, "@")
	}
	return domain.Identity{Subject: u.Sub, Name: name, Email: u.Email}
}

// OAuthService handles the Google OAuth flow. The CSRF state parameter is a
// short-lived signed token instead of a server-side store, so validation
// needs no shared state between instances.
type OAuthService struct {
	config     *oauth2.Config
	signingKey []byte
	logger     *slog.Logger
}

// NewOAuthService creates the OAuth service. An empty stateKey gets a random
// per-process key, which keeps single-instance deployments config-free.
func NewOAuthService(clientID, clientSecret, redirectURL, stateKey string) *OAuthService {
	key := []byte(stateKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}

	return &OAuthService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		signingKey: key,
		logger:     slog.Default().With("component", "oauth"),
	}
}

// AuthURL generates the Google consent screen URL with a fresh state token.
func (s *OAuthService) AuthURL() (string, error) {
	state, err := s.signState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// ExchangeCode exchanges the authorization code for Google user info.
func (s *OAuthService) ExchangeCode(ctx context.Context, code string) (*GoogleUser, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	client := s.config.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v3/userinfo")
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		s.logger.Error("user info request failed", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("user info request failed: %s", resp.Status)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}

	s.logger.Info("fetched Google user info", "sub", user.Sub, "email", user.Email)
	return &user, nil
}
