package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"postyard/domain"
	"postyard/store"
)

type groupFormView struct {
	layout
	Fields []domain.Field
	Form   domain.GroupForm
	Errors domain.FieldErrors
}

func (h *Handler) GetNewGroupForm(c echo.Context) error {
	return h.renderGroupForm(c, http.StatusOK, domain.GroupForm{}, nil)
}

// NewGroup creates a group. A slug that is already taken is reported on
// the form; it is never altered to make it unique.
func (h *Handler) NewGroup(c echo.Context) error {
	form := domain.GroupForm{
		Title:       c.FormValue("title"),
		Slug:        c.FormValue("slug"),
		Description: c.FormValue("description"),
	}
	if errs := form.Validate(); !errs.Valid() {
		return h.renderGroupForm(c, http.StatusOK, form, errs)
	}

	group, err := domain.NewGroup(form.Title, form.Slug, form.Description, h.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.Store.CreateGroup(c.Request().Context(), group); err != nil {
		if errors.Is(err, store.ErrDuplicateSlug) {
			errs := domain.FieldErrors{}
			errs.Add("slug", err)
			return h.renderGroupForm(c, http.StatusConflict, form, errs)
		}
		return h.storeError(err)
	}

	h.logger().Info("group created", "group_id", group.ID, "slug", group.Slug)
	return c.Redirect(http.StatusFound, "/group/"+group.Slug+"/")
}

func (h *Handler) renderGroupForm(c echo.Context, status int, form domain.GroupForm, errs domain.FieldErrors) error {
	if errs == nil {
		errs = domain.FieldErrors{}
	}
	return c.Render(status, "create_group.html", groupFormView{
		layout: h.layout(c, "New group"),
		Fields: domain.GroupFields,
		Form:   form,
		Errors: errs,
	})
}
