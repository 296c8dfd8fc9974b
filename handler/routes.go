package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Register wires the routes, renderer and error pages into e.
func (h *Handler) Register(e *echo.Echo) error {
	renderer, err := NewTemplateRegistry()
	if err != nil {
		return err
	}
	e.Renderer = renderer
	e.HTTPErrorHandler = h.HTTPErrorHandler

	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			return c.Request().Method != http.MethodGet
		},
	}))

	requireLogin := h.RequireLogin()

	// Listings
	e.GET("/", h.GetPosts)
	e.GET("/group/:slug/", h.GetGroupPosts)
	e.GET("/profile/:username/", h.GetProfile)
	e.GET("/posts/:id/", h.GetByID)

	// Authoring
	e.GET("/create/", h.GetNewPostForm, requireLogin)
	e.POST("/create/", h.NewPost, requireLogin)
	e.GET("/posts/:id/edit/", h.GetEditPostForm, requireLogin)
	e.POST("/posts/:id/edit/", h.EditPost, requireLogin)
	e.GET("/groups/new/", h.GetNewGroupForm, requireLogin)
	e.POST("/groups/new/", h.NewGroup, requireLogin)

	// Accounts
	e.GET("/auth/signup/", h.GetNewUserForm)
	e.POST("/auth/signup/", h.NewUser)
	e.GET("/auth/login/", h.GetLoginForm)
	e.POST("/auth/login/", h.Login)
	e.GET("/auth/logout/", h.Logout)

	return nil
}
