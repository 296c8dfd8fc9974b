package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"postyard/domain"
	"postyard/store"
)

type credentialsView struct {
	layout
	Username string
	Next     string
	Error    string
}

func (h *Handler) Login(c echo.Context) error {
	formUsername := c.FormValue("username")
	formPassword := c.FormValue("password")
	next := safeNext(c.FormValue("next"))

	if len(formUsername) == 0 || len(formPassword) == 0 {
		return h.renderCredentials(c, "user_login.html", http.StatusBadRequest, formUsername, next, "Username and password are required")
	}

	user, err := h.Store.GetUserByUsername(c.Request().Context(), formUsername)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.renderCredentials(c, "user_login.html", http.StatusBadRequest, formUsername, next, "Wrong username or password")
		}
		return h.storeError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(formPassword)); err != nil {
		return h.renderCredentials(c, "user_login.html", http.StatusBadRequest, formUsername, next, "Wrong username or password")
	}

	return h.startSession(c, *user, next)
}

func (h *Handler) NewUser(c echo.Context) error {
	if !h.EnableSignup {
		return echo.NewHTTPError(http.StatusForbidden, "Sign up has been disabled.")
	}

	username := c.FormValue("username")
	password := c.FormValue("password")
	if err := domain.ValidateUsername(username); err != nil {
		return h.renderCredentials(c, "user_signup.html", http.StatusBadRequest, username, "", err.Error())
	}
	if err := domain.ValidatePassword(password); err != nil {
		return h.renderCredentials(c, "user_signup.html", http.StatusBadRequest, username, "", err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := h.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Store.CreateUser(c.Request().Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return h.renderCredentials(c, "user_signup.html", http.StatusConflict, username, "", "Username already taken")
		}
		return h.storeError(err)
	}

	h.logger().Info("user signed up", "user_id", user.ID, "username", user.Username)
	return h.startSession(c, user, "/")
}

func (h *Handler) Logout(c echo.Context) error {
	c.SetCookie(expiredCookie())
	return c.Redirect(http.StatusFound, "/")
}

func (h *Handler) GetNewUserForm(c echo.Context) error {
	if !h.EnableSignup {
		return echo.NewHTTPError(http.StatusForbidden, "Sign up has been disabled.")
	}
	return h.renderCredentials(c, "user_signup.html", http.StatusOK, "", "", "")
}

func (h *Handler) GetLoginForm(c echo.Context) error {
	return h.renderCredentials(c, "user_login.html", http.StatusOK, "", safeNext(c.QueryParam("next")), "")
}

func (h *Handler) startSession(c echo.Context, user domain.User, next string) error {
	cookie, err := h.Tokens.Cookie(user)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)
	return c.Redirect(http.StatusFound, next)
}

func (h *Handler) renderCredentials(c echo.Context, page string, status int, username, next, message string) error {
	title := "Log in"
	if page == "user_signup.html" {
		title = "Sign up"
	}
	return c.Render(status, page, credentialsView{
		layout:   h.layout(c, title),
		Username: username,
		Next:     next,
		Error:    message,
	})
}
