package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID       string
	Text     string
	PubDate  time.Time
	AuthorID string
	// Author is the author's username, filled in by listings.
	Author string
	// GroupID is empty when the post belongs to no group.
	GroupID string
	Group   *Group
}

func NewPost(text, authorID, groupID string, now time.Time) (*Post, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if authorID == "" {
		return nil, ErrEmptyAuthor
	}
	return &Post{
		ID:       uuid.NewString(),
		Text:     text,
		PubDate:  now.UTC(),
		AuthorID: authorID,
		GroupID:  groupID,
	}, nil
}

// EditableBy reports whether userID may change the post.
func (p Post) EditableBy(userID string) bool {
	return userID != "" && p.AuthorID == userID
}

// Apply copies the editable fields of a validated form onto the post.
// Author and publication date never change.
func (p *Post) Apply(form PostForm) {
	p.Text = form.Text
	if p.GroupID != form.GroupID {
		p.Group = nil
	}
	p.GroupID = form.GroupID
}

// Excerpt returns at most n characters of the text.
func (p Post) Excerpt(n int) string {
	runes := []rune(p.Text)
	if len(runes) <= n {
		return p.Text
	}
	return string(runes[:n])
}

func (p Post) String() string {
	return p.Text
}
