package handler

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"

	"postyard/domain"
)

//go:embed templates/*.html
var templatesFS embed.FS

var sanitizerUGC = bluemonday.UGCPolicy()

var pages = []string{
	"index.html",
	"group_list.html",
	"profile.html",
	"post_detail.html",
	"create_post.html",
	"create_group.html",
	"user_login.html",
	"user_signup.html",
	"error.html",
}

// fieldContext pairs a form field with the errors of its form.
type fieldContext struct {
	Field  domain.Field
	Errors domain.FieldErrors
}

var templateFuncs = template.FuncMap{
	"fieldContext": func(f domain.Field, errs domain.FieldErrors) fieldContext {
		return fieldContext{Field: f, Errors: errs}
	},
}

type TemplateRegistry struct {
	templates map[string]*template.Template
}

// NewTemplateRegistry parses every page together with the shared layout.
func NewTemplateRegistry() (*TemplateRegistry, error) {
	t := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templatesFS,
			"templates/"+name, "templates/base.html", "templates/partials.html")
		if err != nil {
			return nil, err
		}
		t[name] = tmpl
	}
	return &TemplateRegistry{templates: t}, nil
}

func (t *TemplateRegistry) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.templates[name]
	if !ok {
		return errors.New("template not found: " + name)
	}
	return tmpl.ExecuteTemplate(w, "base.html", data)
}

// layout carries what base.html needs on every page.
type layout struct {
	Site  domain.Site
	User  Identity
	Title string
}

func (h *Handler) layout(c echo.Context, title string) layout {
	return layout{Site: h.Site, User: h.identity(c), Title: title}
}

// PostView is a post prepared for display.
type PostView struct {
	ID      string
	Text    template.HTML
	Author  string
	PubDate string
	Group   *domain.Group
	CanEdit bool
}

func (h *Handler) postView(p domain.Post, viewer Identity) PostView {
	return PostView{
		ID:      p.ID,
		Text:    safeMd(p.Text),
		Author:  p.Author,
		PubDate: p.PubDate.Format(time.DateOnly),
		Group:   p.Group,
		CanEdit: p.EditableBy(viewer.UserID),
	}
}

func mdToHTML(md string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})

	return markdown.Render(doc, renderer)
}

func safeMd(content string) template.HTML {
	return template.HTML(sanitizerUGC.SanitizeBytes(mdToHTML(content)))
}

type errorView struct {
	layout
	Code    int
	Message string
}

// HTTPErrorHandler renders error pages. Anything but a 404 is logged.
func (h *Handler) HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := ""
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message, _ = he.Message.(string)
	}
	if message == "" {
		message = http.StatusText(code)
	}
	if code != http.StatusNotFound {
		h.logger().Error("request failed",
			"error", err,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", code,
		)
	}

	view := errorView{
		layout:  h.layout(c, http.StatusText(code)),
		Code:    code,
		Message: message,
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.Render(code, "error.html", view)
	}
	if err != nil {
		h.logger().Error("failed to render error page", "error", err)
	}
}
