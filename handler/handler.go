package handler

import (
	"log/slog"
	"time"

	"postyard/domain"
	"postyard/store"
)

// Handler serves the blog. Every collaborator is injected by the caller.
type Handler struct {
	Store        store.Store
	Tokens       *Tokens
	EnableSignup bool
	PageSize     int
	Site         domain.Site
	Logger       *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) pageSize() int {
	if h.PageSize > 0 {
		return min(h.PageSize, domain.MaxPageSize)
	}
	return domain.DefaultPageSize
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
