package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunirix/portal/internal/auth"
)

func TestLoginSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var creds auth.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, auth.Credentials{Email: "a@b.com", Password: "x"}, creds)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"t1","user":{"id":3,"name":"Ana","isFirstLogin":true,"mustChangePassword":false}}`))
	}))
	defer srv.Close()

	client := New(Config{LoginURL: srv.URL})
	res, err := client.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.Token)
	assert.Equal(t, "Ana", res.User.Name)
	assert.True(t, res.User.IsFirstLogin)
	assert.False(t, res.User.MustChangePassword)
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	defer srv.Close()

	_, err := New(Config{LoginURL: srv.URL}).Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})
	authErr, ok := IsAuthentication(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, "Invalid credentials", authErr.Message)
}

func TestLoginRejectedKeepsMessageVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"  Account locked.\n"}`))
	}))
	defer srv.Close()

	_, err := New(Config{LoginURL: srv.URL}).Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})
	authErr, ok := IsAuthentication(err)
	require.True(t, ok)
	assert.Equal(t, "  Account locked.\n", authErr.Message)
}

func TestLoginRejectedWithoutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(Config{LoginURL: srv.URL}).Login(context.Background(), auth.Credentials{})
	authErr, ok := IsAuthentication(err)
	require.True(t, ok)
	assert.Empty(t, authErr.Message)
}

func TestLoginTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Config{LoginURL: url}).Login(context.Background(), auth.Credentials{})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	_, isAuth := IsAuthentication(err)
	assert.False(t, isAuth)
}

func TestLoginUndecodableSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := New(Config{LoginURL: srv.URL}).Login(context.Background(), auth.Credentials{})
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestChangePasswordSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t1", r.Header.Get("Authorization"))
		var change auth.PasswordChange
		require.NoError(t, json.NewDecoder(r.Body).Decode(&change))
		assert.Equal(t, "new-password", change.NewPassword)
		_, _ = w.Write([]byte(`{"user":{"id":3,"name":"Ana"}}`))
	}))
	defer srv.Close()

	client := New(Config{ChangePasswordURL: srv.URL})
	user, err := client.ChangePassword(context.Background(), "t1", auth.PasswordChange{CurrentPassword: "old", NewPassword: "new-password"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.False(t, user.RequiresPasswordChange())
}
