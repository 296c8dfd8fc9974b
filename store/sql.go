package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"postyard/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

// timeLayout is fixed-width so that text comparison orders timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// =============================================================================
// SQLStore
// =============================================================================

// SQLStore implements Store on SQLite or PostgreSQL.
type SQLStore struct {
	db *sqlx.DB
}

// Open connects to the database and runs the embedded migrations.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPgx:
	default:
		return nil, NewStoreError("Open", "", "", driver, ErrUnknownDriver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, NewStoreError("Open", "", "", "failed to open database", ErrConnectionFailed)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "", "failed to ping database: "+err.Error(), ErrConnectionFailed)
	}

	if err := runMigrations(db, driver); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLStore{db: db}, nil
}

// sqliteDSN turns on foreign keys, which SQLite leaves off by default.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func runMigrations(db *sqlx.DB, driver string) error {
	var (
		instance database.Driver
		err      error
	)
	switch driver {
	case DriverSQLite:
		instance, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	case DriverPgx:
		instance, err = migratepgx.WithInstance(db.DB, &migratepgx.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateUser(ctx context.Context, user *domain.User) error {
	return createUser(ctx, s.db, user)
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, s.db, "GetUser", "id", id)
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return getUser(ctx, s.db, "GetUserByUsername", "username", username)
}

func (s *SQLStore) DeleteUser(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, "DeleteUser", "user", "users", id)
}

func (s *SQLStore) CreateGroup(ctx context.Context, group *domain.Group) error {
	return createGroup(ctx, s.db, group)
}

func (s *SQLStore) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	return getGroup(ctx, s.db, "GetGroup", "id", id)
}

func (s *SQLStore) GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	return getGroup(ctx, s.db, "GetGroupBySlug", "slug", slug)
}

func (s *SQLStore) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return listGroups(ctx, s.db)
}

func (s *SQLStore) DeleteGroup(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, "DeleteGroup", "group", "groups", id)
}

func (s *SQLStore) CreatePost(ctx context.Context, post *domain.Post) error {
	return createPost(ctx, s.db, post)
}

func (s *SQLStore) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return getPost(ctx, s.db, id)
}

func (s *SQLStore) UpdatePost(ctx context.Context, post *domain.Post) error {
	return updatePost(ctx, s.db, post)
}

func (s *SQLStore) ListPosts(ctx context.Context, filter PostFilter, opts ListOptions) ([]domain.Post, error) {
	return listPosts(ctx, s.db, filter, opts)
}

func (s *SQLStore) CountPosts(ctx context.Context, filter PostFilter) (int, error) {
	return countPosts(ctx, s.db, filter)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

// txStore implements Store within a transaction. Nested WithTx calls run
// inside the outer transaction.
type txStore struct {
	tx *sqlx.Tx
}

func (s *txStore) CreateUser(ctx context.Context, user *domain.User) error {
	return createUser(ctx, s.tx, user)
}

func (s *txStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, s.tx, "GetUser", "id", id)
}

func (s *txStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return getUser(ctx, s.tx, "GetUserByUsername", "username", username)
}

func (s *txStore) DeleteUser(ctx context.Context, id string) error {
	return deleteByID(ctx, s.tx, "DeleteUser", "user", "users", id)
}

func (s *txStore) CreateGroup(ctx context.Context, group *domain.Group) error {
	return createGroup(ctx, s.tx, group)
}

func (s *txStore) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	return getGroup(ctx, s.tx, "GetGroup", "id", id)
}

func (s *txStore) GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	return getGroup(ctx, s.tx, "GetGroupBySlug", "slug", slug)
}

func (s *txStore) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return listGroups(ctx, s.tx)
}

func (s *txStore) DeleteGroup(ctx context.Context, id string) error {
	return deleteByID(ctx, s.tx, "DeleteGroup", "group", "groups", id)
}

func (s *txStore) CreatePost(ctx context.Context, post *domain.Post) error {
	return createPost(ctx, s.tx, post)
}

func (s *txStore) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return getPost(ctx, s.tx, id)
}

func (s *txStore) UpdatePost(ctx context.Context, post *domain.Post) error {
	return updatePost(ctx, s.tx, post)
}

func (s *txStore) ListPosts(ctx context.Context, filter PostFilter, opts ListOptions) ([]domain.Post, error) {
	return listPosts(ctx, s.tx, filter, opts)
}

func (s *txStore) CountPosts(ctx context.Context, filter PostFilter) (int, error) {
	return countPosts(ctx, s.tx, filter)
}

func (s *txStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *txStore) Close() error {
	return nil
}

// =============================================================================
// Users
// =============================================================================

type userRow struct {
	ID        string `db:"id"`
	Username  string `db:"username"`
	Password  string `db:"password"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func createUser(ctx context.Context, exec executor, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, password, created_at, updated_at)
		VALUES (:id, :username, :password, :created_at, :updated_at)`

	_, err := exec.NamedExecContext(ctx, query, userRow{
		ID:        user.ID,
		Username:  user.Username,
		Password:  user.PasswordHash,
		CreatedAt: formatTime(user.CreatedAt),
		UpdatedAt: formatTime(user.UpdatedAt),
	})
	if err != nil {
		if isUniqueViolation(err, "users", "username") {
			return NewStoreError("CreateUser", "user", user.ID, "username already taken", ErrDuplicateUsername)
		}
		return NewStoreError("CreateUser", "user", user.ID, err.Error(), err)
	}
	return nil
}

func getUser(ctx context.Context, exec executor, op, column, value string) (*domain.User, error) {
	query := exec.Rebind(`SELECT id, username, password, created_at, updated_at FROM users WHERE ` + column + ` = ?`)

	var row userRow
	if err := exec.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError(op, "user", value, "user not found", ErrNotFound)
		}
		return nil, NewStoreError(op, "user", value, err.Error(), err)
	}

	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError(op, "user", value, "invalid created_at", err)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError(op, "user", value, "invalid updated_at", err)
	}

	return &domain.User{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: row.Password,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// =============================================================================
// Groups
// =============================================================================

type groupRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	Slug        string `db:"slug"`
	Description string `db:"description"`
	CreatedAt   string `db:"created_at"`
}

func createGroup(ctx context.Context, exec executor, group *domain.Group) error {
	query := `
		INSERT INTO groups (id, title, slug, description, created_at)
		VALUES (:id, :title, :slug, :description, :created_at)`

	_, err := exec.NamedExecContext(ctx, query, groupRow{
		ID:          group.ID,
		Title:       group.Title,
		Slug:        group.Slug,
		Description: group.Description,
		CreatedAt:   formatTime(group.CreatedAt),
	})
	if err != nil {
		if isUniqueViolation(err, "groups", "slug") {
			return NewStoreError("CreateGroup", "group", group.Slug, "slug already taken", ErrDuplicateSlug)
		}
		return NewStoreError("CreateGroup", "group", group.ID, err.Error(), err)
	}
	return nil
}

func getGroup(ctx context.Context, exec executor, op, column, value string) (*domain.Group, error) {
	query := exec.Rebind(`SELECT id, title, slug, description, created_at FROM groups WHERE ` + column + ` = ?`)

	var row groupRow
	if err := exec.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError(op, "group", value, "group not found", ErrNotFound)
		}
		return nil, NewStoreError(op, "group", value, err.Error(), err)
	}
	return rowToGroup(row)
}

func listGroups(ctx context.Context, exec executor) ([]domain.Group, error) {
	query := `SELECT id, title, slug, description, created_at FROM groups ORDER BY title, slug`

	var rows []groupRow
	if err := exec.SelectContext(ctx, &rows, query); err != nil {
		return nil, NewStoreError("ListGroups", "group", "", err.Error(), err)
	}

	groups := make([]domain.Group, 0, len(rows))
	for _, row := range rows {
		g, err := rowToGroup(row)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, nil
}

func rowToGroup(row groupRow) (*domain.Group, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToGroup", "group", row.ID, "invalid created_at", err)
	}
	return &domain.Group{
		ID:          row.ID,
		Title:       row.Title,
		Slug:        row.Slug,
		Description: row.Description,
		CreatedAt:   createdAt,
	}, nil
}

// =============================================================================
// Posts
// =============================================================================

type postRow struct {
	ID               string         `db:"id"`
	Text             string         `db:"text"`
	PubDate          string         `db:"pub_date"`
	AuthorID         string         `db:"author_id"`
	AuthorUsername   string         `db:"author_username"`
	GroupID          sql.NullString `db:"group_id"`
	GroupTitle       sql.NullString `db:"group_title"`
	GroupSlug        sql.NullString `db:"group_slug"`
	GroupDescription sql.NullString `db:"group_description"`
	GroupCreatedAt   sql.NullString `db:"group_created_at"`
}

const postSelect = `
	SELECT
		p.id, p.text, p.pub_date, p.author_id,
		u.username AS author_username,
		p.group_id,
		g.title AS group_title,
		g.slug AS group_slug,
		g.description AS group_description,
		g.created_at AS group_created_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN groups g ON g.id = p.group_id`

func createPost(ctx context.Context, exec executor, post *domain.Post) error {
	query := `
		INSERT INTO posts (id, text, pub_date, author_id, group_id)
		VALUES (:id, :text, :pub_date, :author_id, :group_id)`

	_, err := exec.NamedExecContext(ctx, query, map[string]any{
		"id":        post.ID,
		"text":      post.Text,
		"pub_date":  formatTime(post.PubDate),
		"author_id": post.AuthorID,
		"group_id":  nullable(post.GroupID),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return NewStoreError("CreatePost", "post", post.ID, "unknown author or group", ErrForeignKey)
		}
		return NewStoreError("CreatePost", "post", post.ID, err.Error(), err)
	}
	return nil
}

func getPost(ctx context.Context, exec executor, id string) (*domain.Post, error) {
	query := exec.Rebind(postSelect + ` WHERE p.id = ?`)

	var row postRow
	if err := exec.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetPost", "post", id, "post not found", ErrNotFound)
		}
		return nil, NewStoreError("GetPost", "post", id, err.Error(), err)
	}
	return rowToPost(row)
}

func updatePost(ctx context.Context, exec executor, post *domain.Post) error {
	query := `UPDATE posts SET text = :text, group_id = :group_id WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, map[string]any{
		"id":       post.ID,
		"text":     post.Text,
		"group_id": nullable(post.GroupID),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return NewStoreError("UpdatePost", "post", post.ID, "unknown group", ErrForeignKey)
		}
		return NewStoreError("UpdatePost", "post", post.ID, err.Error(), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdatePost", "post", post.ID, err.Error(), err)
	}
	if affected == 0 {
		return NewStoreError("UpdatePost", "post", post.ID, "post not found", ErrNotFound)
	}
	return nil
}

func listPosts(ctx context.Context, exec executor, filter PostFilter, opts ListOptions) ([]domain.Post, error) {
	opts = opts.Normalize()
	where, args := filter.where()
	query := exec.Rebind(postSelect + where + ` ORDER BY p.pub_date DESC, p.id DESC LIMIT ? OFFSET ?`)
	args = append(args, opts.Limit, opts.Offset)

	var rows []postRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListPosts", "post", "", err.Error(), err)
	}

	posts := make([]domain.Post, 0, len(rows))
	for _, row := range rows {
		p, err := rowToPost(row)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, nil
}

func countPosts(ctx context.Context, exec executor, filter PostFilter) (int, error) {
	where, args := filter.where()
	query := exec.Rebind(`SELECT COUNT(*) FROM posts p` + where)

	var total int
	if err := exec.GetContext(ctx, &total, query, args...); err != nil {
		return 0, NewStoreError("CountPosts", "post", "", err.Error(), err)
	}
	return total, nil
}

func (f PostFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.GroupID != "" {
		conds = append(conds, "p.group_id = ?")
		args = append(args, f.GroupID)
	}
	if f.AuthorID != "" {
		conds = append(conds, "p.author_id = ?")
		args = append(args, f.AuthorID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func rowToPost(row postRow) (*domain.Post, error) {
	pubDate, err := parseTime(row.PubDate)
	if err != nil {
		return nil, NewStoreError("rowToPost", "post", row.ID, "invalid pub_date", err)
	}

	post := &domain.Post{
		ID:       row.ID,
		Text:     row.Text,
		PubDate:  pubDate,
		AuthorID: row.AuthorID,
		Author:   row.AuthorUsername,
	}
	if row.GroupID.Valid {
		group, err := rowToGroup(groupRow{
			ID:          row.GroupID.String,
			Title:       row.GroupTitle.String,
			Slug:        row.GroupSlug.String,
			Description: row.GroupDescription.String,
			CreatedAt:   row.GroupCreatedAt.String,
		})
		if err != nil {
			return nil, err
		}
		post.GroupID = group.ID
		post.Group = group
	}
	return post, nil
}

// =============================================================================
// Helpers
// =============================================================================

func deleteByID(ctx context.Context, exec executor, op, entity, table, id string) error {
	result, err := exec.ExecContext(ctx, exec.Rebind(`DELETE FROM `+table+` WHERE id = ?`), id)
	if err != nil {
		return NewStoreError(op, entity, id, err.Error(), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError(op, entity, id, err.Error(), err)
	}
	if affected == 0 {
		return NewStoreError(op, entity, id, entity+" not found", ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error, table, column string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == table+"_"+column+"_key"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+table+"."+column)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
