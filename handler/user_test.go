package handler

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionCookie(rec interface{ Result() *http.Response }) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookie {
			return c
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "auth", "password123")

	rec := app.post("/auth/login/", url.Values{
		"username": {"auth"},
		"password": {"password123"},
		"next":     {"/create/"},
	}, nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/create/", rec.Header().Get("Location"))

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	claims, err := app.h.Tokens.Parse(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, "auth", claims.Username)

	// The cookie opens the login-gated pages.
	assert.Equal(t, http.StatusOK, app.get("/create/", cookie).Code)
}

func TestLoginRejectsOffsiteNext(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "auth", "password123")

	rec := app.post("/auth/login/", url.Values{
		"username": {"auth"},
		"password": {"password123"},
		"next":     {"//evil.example/"},
	}, nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLoginFailures(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "auth", "password123")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "auth", "nope-nope"},
		{"unknown user", "ghost", "password123"},
		{"missing fields", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.post("/auth/login/", url.Values{
				"username": {tt.username},
				"password": {tt.password},
			}, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `class="form-error"`)
			assert.Nil(t, sessionCookie(rec))
		})
	}
}

func TestLoginFormKeepsNext(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/auth/login/?next=%2Fcreate%2F", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="next" value="/create/"`)
}

func TestSignup(t *testing.T) {
	app := newTestApp(t)

	rec := app.post("/auth/signup/", url.Values{
		"username": {"newbie"},
		"password": {"password123"},
	}, nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.NotNil(t, sessionCookie(rec))

	user, err := app.store.GetUserByUsername(context.Background(), "newbie")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", user.PasswordHash)
}

func TestSignupFailures(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "taken", "password123")

	tests := []struct {
		name     string
		username string
		password string
		code     int
	}{
		{"duplicate username", "taken", "password123", http.StatusConflict},
		{"invalid username", "no spaces please", "password123", http.StatusBadRequest},
		{"short password", "newbie", "short", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.post("/auth/signup/", url.Values{
				"username": {tt.username},
				"password": {tt.password},
			}, nil)
			assert.Equal(t, tt.code, rec.Code)
			assert.Nil(t, sessionCookie(rec))
		})
	}
}

func TestSignupDisabled(t *testing.T) {
	app := newTestApp(t)
	app.h.EnableSignup = false

	assert.Equal(t, http.StatusForbidden, app.get("/auth/signup/", nil).Code)

	rec := app.post("/auth/signup/", url.Values{
		"username": {"newbie"},
		"password": {"password123"},
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign up has been disabled.")

	_, err := app.store.GetUserByUsername(context.Background(), "newbie")
	assert.Error(t, err)
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "auth", "password123")

	rec := app.get("/auth/logout/", app.login(t, user))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()))
}
