package domain

import (
	"strings"
)

// Field describes one input of a hand-declared form.
type Field struct {
	Name     string
	Label    string
	HelpText string
	Required bool
}

// PostFields are the only post fields a user may submit.
var PostFields = []Field{
	{Name: "text", Label: "Post text", HelpText: "Text of the new post", Required: true},
	{Name: "group", Label: "Group", HelpText: "Group the post will belong to"},
}

var GroupFields = []Field{
	{Name: "title", Label: "Title", Required: true},
	{Name: "slug", Label: "Slug", HelpText: "Leave empty to derive it from the title"},
	{Name: "description", Label: "Description"},
}

// FieldErrors maps a field name to its validation message.
type FieldErrors map[string]string

func (e FieldErrors) Add(field string, err error) {
	if _, exists := e[field]; !exists {
		e[field] = err.Error()
	}
}

func (e FieldErrors) Valid() bool {
	return len(e) == 0
}

type PostForm struct {
	Text    string
	GroupID string
}

// Validate checks the form against the groups a post may belong to.
func (f PostForm) Validate(groups []Group) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Text) == "" {
		errs.Add("text", ErrEmptyText)
	}
	if f.GroupID != "" && !containsGroup(groups, f.GroupID) {
		errs.Add("group", ErrUnknownGroup)
	}
	return errs
}

// PostFormFrom prefills a form with the editable fields of p.
func PostFormFrom(p Post) PostForm {
	return PostForm{Text: p.Text, GroupID: p.GroupID}
}

type GroupForm struct {
	Title       string
	Slug        string
	Description string
}

func (f GroupForm) Validate() FieldErrors {
	errs := FieldErrors{}
	title := strings.TrimSpace(f.Title)
	if err := validateGroupTitle(title); err != nil {
		errs.Add("title", err)
		return errs
	}
	if _, err := resolveSlug(title, strings.TrimSpace(f.Slug)); err != nil {
		errs.Add("slug", err)
	}
	return errs
}

func containsGroup(groups []Group, id string) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}
