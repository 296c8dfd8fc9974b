package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"postyard/domain"
)

const (
	authCookie = "Authorization"
	loginPath  = "/auth/login/"
)

// Claims is the payload of the session token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies session tokens signed with HMAC-SHA256.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("missing secret")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Cookie returns a session cookie for user.
func (t *Tokens) Cookie(user domain.User) (*http.Cookie, error) {
	exp := t.now().Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(t.now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return nil, err
	}

	return &http.Cookie{
		Name:     authCookie,
		Value:    signed,
		Expires:  exp,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Parse verifies a raw token and returns its claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *Tokens) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return t.secret, nil
}

func expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:    authCookie,
		Value:   "",
		Path:    "/",
		Expires: time.Now().Add(-1 * time.Second),
	}
}

// Identity is the user behind a request. The zero value is an anonymous
// visitor.
type Identity struct {
	UserID   string
	Username string
}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// identity resolves the acting user, first from the token verified by
// RequireLogin and otherwise from the session cookie.
func (h *Handler) identity(c echo.Context) Identity {
	if token, ok := c.Get("user").(*jwt.Token); ok && token.Valid {
		if claims, ok := token.Claims.(*Claims); ok {
			return Identity{UserID: claims.Subject, Username: claims.Username}
		}
	}

	cookie, err := c.Cookie(authCookie)
	if err != nil || cookie.Value == "" {
		return Identity{}
	}
	claims, err := h.Tokens.Parse(cookie.Value)
	if err != nil {
		return Identity{}
	}
	return Identity{UserID: claims.Subject, Username: claims.Username}
}

// RequireLogin lets only requests with a valid session cookie through.
// Anonymous visitors are sent to the login page and come back afterwards.
func (h *Handler) RequireLogin() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "cookie:" + authCookie,
		KeyFunc:     h.Tokens.keyFunc,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.Redirect(http.StatusFound, loginURL(c.Request().URL.RequestURI()))
		},
	})
}

func loginURL(next string) string {
	return loginPath + "?next=" + url.QueryEscape(next)
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
