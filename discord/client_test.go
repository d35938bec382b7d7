package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeURL(t *testing.T) {
	c := New(Config{
		ClientID:    "client-123",
		APIBaseURL:  "https://discord.com/api",
		RedirectURI: "http://localhost:8080/api/auth/callback",
	})

	raw := c.AuthorizeURL("state-token", "challenge-value")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/api/oauth2/authorize", parsed.Path)
	q := parsed.Query()
	assert.Equal(t, "client-123", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "identify guilds.join", q.Get("scope"))
	assert.Equal(t, "state-token", q.Get("state"))
	assert.Equal(t, "challenge-value", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "the-verifier", r.PostForm.Get("code_verifier"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
		})
	}))
	defer srv.Close()

	c := New(Config{ClientID: "id", ClientSecret: "secret", APIBaseURL: srv.URL})

	token, err := c.ExchangeCode(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, "refresh", token.RefreshToken)
}

func TestExchangeCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(Config{APIBaseURL: srv.URL})
	_, err := c.ExchangeCode(context.Background(), "bad-code", "verifier")
	assert.Error(t, err)
}

func TestFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/@me", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Profile{ID: "42", Username: "tester"})
	}))
	defer srv.Close()

	c := New(Config{APIBaseURL: srv.URL})

	profile, err := c.FetchProfile(context.Background(), "access")
	require.NoError(t, err)
	assert.Equal(t, "42", profile.ID)
	assert.Equal(t, "tester", profile.Username)
}

func TestIsGuildMember(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/guilds/guild-1/members/42", r.URL.Path)
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := New(Config{APIBaseURL: srv.URL, GuildID: "guild-1", BotToken: "bot-token"})
	ctx := context.Background()

	member, err := c.IsGuildMember(ctx, "42")
	require.NoError(t, err)
	assert.True(t, member)

	status = http.StatusNotFound
	member, err = c.IsGuildMember(ctx, "42")
	require.NoError(t, err)
	assert.False(t, member)

	status = http.StatusInternalServerError
	_, err = c.IsGuildMember(ctx, "42")
	assert.Error(t, err)
}

func TestGuildOperationsWithoutGuildConfigured(t *testing.T) {
	c := New(Config{APIBaseURL: "http://unused.example"})
	ctx := context.Background()

	assert.NoError(t, c.JoinGuild(ctx, "42", "access"))

	member, err := c.IsGuildMember(ctx, "42")
	require.NoError(t, err)
	assert.True(t, member)
}
