package store

import (
	"context"

	"postyard/domain"
)

// Store is the persistence boundary used by the HTTP handlers.
type Store interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	// DeleteUser removes the user together with all of their posts.
	DeleteUser(ctx context.Context, id string) error

	CreateGroup(ctx context.Context, group *domain.Group) error
	GetGroup(ctx context.Context, id string) (*domain.Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)
	// DeleteGroup removes the group; its posts stay without a group.
	DeleteGroup(ctx context.Context, id string) error

	CreatePost(ctx context.Context, post *domain.Post) error
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	// UpdatePost stores the text and group of post. Nothing else changes.
	UpdatePost(ctx context.Context, post *domain.Post) error
	ListPosts(ctx context.Context, filter PostFilter, opts ListOptions) ([]domain.Post, error)
	CountPosts(ctx context.Context, filter PostFilter) (int, error)

	WithTx(ctx context.Context, fn func(Store) error) error
	Close() error
}

// PostFilter narrows a post listing. Empty fields match everything.
type PostFilter struct {
	GroupID  string
	AuthorID string
}

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = domain.DefaultPageSize
	}
	if o.Limit > domain.MaxPageSize {
		o.Limit = domain.MaxPageSize
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// OptionsFor converts page bounds into list options.
func OptionsFor(b domain.PageBounds) ListOptions {
	return ListOptions{Limit: b.Size, Offset: b.Offset}
}
