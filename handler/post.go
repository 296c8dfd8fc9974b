package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"postyard/domain"
	"postyard/store"
)

// titleExcerpt is how much of the post text the detail page title shows.
const titleExcerpt = 30

type listView struct {
	layout
	Page domain.Page[PostView]
}

type groupListView struct {
	listView
	Group domain.Group
}

type profileView struct {
	listView
	Author     domain.User
	TotalPosts int
}

type postDetailView struct {
	layout
	Post       PostView
	TotalPosts int
}

type postFormView struct {
	layout
	Fields []domain.Field
	Form   domain.PostForm
	Errors domain.FieldErrors
	Groups []domain.Group
	IsEdit bool
	PostID string
}

func (h *Handler) GetPosts(c echo.Context) error {
	page, err := h.listPosts(c, store.PostFilter{})
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "index.html", listView{
		layout: h.layout(c, "Latest posts"),
		Page:   page,
	})
}

func (h *Handler) GetGroupPosts(c echo.Context) error {
	ctx := c.Request().Context()
	group, err := h.Store.GetGroupBySlug(ctx, c.Param("slug"))
	if err != nil {
		return h.storeError(err)
	}

	page, err := h.listPosts(c, store.PostFilter{GroupID: group.ID})
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "group_list.html", groupListView{
		listView: listView{layout: h.layout(c, group.Title), Page: page},
		Group:    *group,
	})
}

func (h *Handler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	author, err := h.Store.GetUserByUsername(ctx, c.Param("username"))
	if err != nil {
		return h.storeError(err)
	}

	page, err := h.listPosts(c, store.PostFilter{AuthorID: author.ID})
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "profile.html", profileView{
		listView:   listView{layout: h.layout(c, "Profile of "+author.Username), Page: page},
		Author:     *author,
		TotalPosts: page.Total,
	})
}

func (h *Handler) GetByID(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := h.Store.GetPost(ctx, c.Param("id"))
	if err != nil {
		return h.storeError(err)
	}
	total, err := h.Store.CountPosts(ctx, store.PostFilter{AuthorID: post.AuthorID})
	if err != nil {
		return h.storeError(err)
	}

	l := h.layout(c, "Post: "+post.Excerpt(titleExcerpt))
	return c.Render(http.StatusOK, "post_detail.html", postDetailView{
		layout:     l,
		Post:       h.postView(*post, l.User),
		TotalPosts: total,
	})
}

func (h *Handler) GetNewPostForm(c echo.Context) error {
	groups, err := h.Store.ListGroups(c.Request().Context())
	if err != nil {
		return h.storeError(err)
	}
	return h.renderPostForm(c, http.StatusOK, postFormView{
		Form:   domain.PostForm{GroupID: c.QueryParam("group")},
		Groups: groups,
	})
}

func (h *Handler) NewPost(c echo.Context) error {
	ctx := c.Request().Context()
	user := h.identity(c)
	form := postFormFromRequest(c)

	groups, err := h.Store.ListGroups(ctx)
	if err != nil {
		return h.storeError(err)
	}
	if errs := form.Validate(groups); !errs.Valid() {
		return h.renderPostForm(c, http.StatusOK, postFormView{Form: form, Errors: errs, Groups: groups})
	}

	post, err := domain.NewPost(form.Text, user.UserID, form.GroupID, h.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.Store.CreatePost(ctx, post); err != nil {
		return h.storeError(err)
	}

	h.logger().Info("post created", "post_id", post.ID, "author", user.Username)
	return c.Redirect(http.StatusFound, profilePath(user.Username))
}

func (h *Handler) GetEditPostForm(c echo.Context) error {
	ctx := c.Request().Context()
	user := h.identity(c)

	post, err := h.Store.GetPost(ctx, c.Param("id"))
	if err != nil {
		return h.storeError(err)
	}
	if !post.EditableBy(user.UserID) {
		return c.Redirect(http.StatusFound, profilePath(user.Username))
	}

	groups, err := h.Store.ListGroups(ctx)
	if err != nil {
		return h.storeError(err)
	}
	return h.renderPostForm(c, http.StatusOK, postFormView{
		Form:   domain.PostFormFrom(*post),
		Groups: groups,
		IsEdit: true,
		PostID: post.ID,
	})
}

// errNotAuthor aborts an edit transaction without touching the post.
var errNotAuthor = errors.New("only the author may edit a post")

func (h *Handler) EditPost(c echo.Context) error {
	ctx := c.Request().Context()
	user := h.identity(c)
	form := postFormFromRequest(c)
	id := c.Param("id")

	var (
		groups []domain.Group
		errs   domain.FieldErrors
	)
	err := h.Store.WithTx(ctx, func(tx store.Store) error {
		post, err := tx.GetPost(ctx, id)
		if err != nil {
			return err
		}
		if !post.EditableBy(user.UserID) {
			return errNotAuthor
		}

		groups, err = tx.ListGroups(ctx)
		if err != nil {
			return err
		}
		if errs = form.Validate(groups); !errs.Valid() {
			return nil
		}

		post.Apply(form)
		return tx.UpdatePost(ctx, post)
	})
	switch {
	case errors.Is(err, errNotAuthor):
		h.logger().Warn("edit denied", "post_id", id, "user", user.Username)
		return c.Redirect(http.StatusFound, profilePath(user.Username))
	case err != nil:
		return h.storeError(err)
	case !errs.Valid():
		return h.renderPostForm(c, http.StatusOK, postFormView{
			Form: form, Errors: errs, Groups: groups, IsEdit: true, PostID: id,
		})
	}

	return c.Redirect(http.StatusFound, postPath(id))
}

// listPosts reads one page of posts. The count and the page are read in
// one transaction so the page metadata matches its items.
func (h *Handler) listPosts(c echo.Context, filter store.PostFilter) (domain.Page[PostView], error) {
	ctx := c.Request().Context()
	viewer := h.identity(c)
	requested := domain.ParsePageNumber(c.QueryParam("page"))

	var (
		posts  []domain.Post
		bounds domain.PageBounds
	)
	err := h.Store.WithTx(ctx, func(tx store.Store) error {
		total, err := tx.CountPosts(ctx, filter)
		if err != nil {
			return err
		}
		bounds, err = domain.NewPageBounds(total, h.pageSize(), requested)
		if err != nil {
			return err
		}
		posts, err = listPage(ctx, tx, filter, bounds)
		return err
	})
	if err != nil {
		return domain.Page[PostView]{}, h.storeError(err)
	}

	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, h.postView(p, viewer))
	}
	return domain.PageOf(views, bounds), nil
}

func listPage(ctx context.Context, s store.Store, filter store.PostFilter, bounds domain.PageBounds) ([]domain.Post, error) {
	if bounds.Limit == 0 {
		return nil, nil
	}
	return s.ListPosts(ctx, filter, store.OptionsFor(bounds))
}

func (h *Handler) renderPostForm(c echo.Context, status int, view postFormView) error {
	title := "New post"
	if view.IsEdit {
		title = "Edit post"
	}
	view.layout = h.layout(c, title)
	view.Fields = domain.PostFields
	if view.Errors == nil {
		view.Errors = domain.FieldErrors{}
	}
	return c.Render(status, "create_post.html", view)
}

func postFormFromRequest(c echo.Context) domain.PostForm {
	return domain.PostForm{
		Text:    c.FormValue("text"),
		GroupID: c.FormValue("group"),
	}
}

// storeError maps store failures to HTTP errors.
func (h *Handler) storeError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}

func profilePath(username string) string {
	return "/profile/" + username + "/"
}

func postPath(id string) string {
	return "/posts/" + id + "/"
}
