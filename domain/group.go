package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxGroupTitleLength = 200

type Group struct {
	ID          string
	Title       string
	Slug        string
	Description string
	CreatedAt   time.Time
}

// NewGroup builds a group from user input. When slugValue is empty the slug
// is derived from the title; an explicit slug is kept as given.
func NewGroup(title, slugValue, description string, now time.Time) (*Group, error) {
	title = strings.TrimSpace(title)
	if err := validateGroupTitle(title); err != nil {
		return nil, err
	}
	slugValue, err := resolveSlug(title, strings.TrimSpace(slugValue))
	if err != nil {
		return nil, err
	}

	return &Group{
		ID:          uuid.NewString(),
		Title:       title,
		Slug:        slugValue,
		Description: strings.TrimSpace(description),
		CreatedAt:   now.UTC(),
	}, nil
}

func (g Group) String() string {
	return g.Title
}

func validateGroupTitle(title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxGroupTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func resolveSlug(title, explicit string) (string, error) {
	if explicit != "" {
		if !IsSlug(explicit) {
			return "", ErrInvalidSlug
		}
		return explicit, nil
	}
	derived := Slugify(title)
	if derived == "" {
		return "", ErrInvalidSlug
	}
	return derived, nil
}
