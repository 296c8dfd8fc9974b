package domain

import "errors"

var (
	ErrEmptyText       = errors.New("post text is required")
	ErrEmptyAuthor     = errors.New("post author is required")
	ErrUnknownGroup    = errors.New("select a valid group")
	ErrEmptyTitle      = errors.New("group title is required")
	ErrTitleTooLong    = errors.New("group title is too long")
	ErrInvalidSlug     = errors.New("slug must contain only lowercase letters, digits, hyphens or underscores")
	ErrInvalidPageSize = errors.New("page size must be positive")
	ErrInvalidUsername = errors.New("username may contain only letters, digits and @/./+/-/_")
	ErrShortPassword   = errors.New("password is too short")
)
