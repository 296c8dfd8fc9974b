package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"postyard/domain"
	"postyard/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type testApp struct {
	e       *echo.Echo
	h       *Handler
	store   *store.SQLStore
	counter int
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})

	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	h := &Handler{
		Store:        s,
		Tokens:       tokens,
		EnableSignup: true,
		PageSize:     10,
		Site:         domain.Site{Title: "postyard"},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	e := echo.New()
	require.NoError(t, h.Register(e))

	return &testApp{e: e, h: h, store: s}
}

func (a *testApp) createUser(t *testing.T, username, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u := &domain.User{
		ID:           "user-" + username,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
	require.NoError(t, a.store.CreateUser(context.Background(), u))
	return u
}

func (a *testApp) createGroup(t *testing.T, title, slug string) *domain.Group {
	t.Helper()
	g, err := domain.NewGroup(title, slug, "Test description", epoch)
	require.NoError(t, err)
	require.NoError(t, a.store.CreateGroup(context.Background(), g))
	return g
}

// createPost stores a post; each call is one minute newer than the last.
func (a *testApp) createPost(t *testing.T, author *domain.User, group *domain.Group, text string) *domain.Post {
	t.Helper()
	groupID := ""
	if group != nil {
		groupID = group.ID
	}
	a.counter++
	p, err := domain.NewPost(text, author.ID, groupID, epoch.Add(time.Duration(a.counter)*time.Minute))
	require.NoError(t, err)
	require.NoError(t, a.store.CreatePost(context.Background(), p))
	return p
}

func (a *testApp) login(t *testing.T, u *domain.User) *http.Cookie {
	t.Helper()
	cookie, err := a.h.Tokens.Cookie(*u)
	require.NoError(t, err)
	return cookie
}

func (a *testApp) get(target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) post(target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) countPosts(t *testing.T) int {
	t.Helper()
	total, err := a.store.CountPosts(context.Background(), store.PostFilter{})
	require.NoError(t, err)
	return total
}

func articles(body string) int {
	return strings.Count(body, `<article class="post"`)
}
