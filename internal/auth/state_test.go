package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_RoundTrip(t *testing.T) {
	svc := NewOAuthService("id", "secret", "http://localhost:8080/oauth2callback", "signing-key")

	state, err := svc.signState()
	require.NoError(t, err)
	assert.True(t, svc.ValidateState(state))
}

func TestState_RejectsTampered(t *testing.T) {
	svc := NewOAuthService("id", "secret", "http://localhost:8080/oauth2callback", "signing-key")

	state, err := svc.signState()
	require.NoError(t, err)

	parts := strings.Split(state, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	assert.False(t, svc.ValidateState(tampered))
}

func TestState_RejectsGarbage(t *testing.T) {
	svc := NewOAuthService("id", "secret", "http://localhost:8080/oauth2callback", "signing-key")

	assert.False(t, svc.ValidateState(""))
	assert.False(t, svc.ValidateState("not-a-token"))
}

func TestState_RejectsForeignKey(t *testing.T) {
	a := NewOAuthService("id", "secret", "http://localhost:8080/oauth2callback", "key-a")
	b := NewOAuthService("id", "secret", "http://localhost:8080/oauth2callback", "key-b")

	state, err := a.signState()
	require.NoError(t, err)
	assert.False(t, b.ValidateState(state))
}

func TestAuthURL_CarriesValidState(t *testing.T) {
	svc := NewOAuthService("id", "secret", "http://localhost:8080/oauth2callback", "signing-key")

	url, err := svc.AuthURL()
	require.NoError(t, err)
	assert.Contains(t, url, "accounts.google.com")
	assert.Contains(t, url, "client_id=id")
	assert.Contains(t, url, "state=")
}

func TestGoogleUser_Identity(t *testing.T) {
	u := &GoogleUser{Sub: "sub-1", Name: "Gabriel", Email: "g@example.com"}
	id := u.Identity()
	assert.Equal(t, "sub-1", id.Subject)
	assert.Equal(t, "Gabriel", id.Name)
	assert.Equal(t, "g@example.com", id.Email)
}

func TestGoogleUser_IdentityNameFallsBackToEmailLocalPart(t *testing.T) {
	u := &GoogleUser{Sub: "sub-2", Email: "gabriel@example.com"}
	assert.Equal(t, "gabriel", u.Identity().Name)
}
