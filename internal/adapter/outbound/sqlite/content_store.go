// Package sqlite provides a SQLite-backed content store for
// deployments that need content to survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/pressroom-io/pressroom/internal/domain/content"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id         TEXT PRIMARY KEY,
	topic      TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	tonality   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_topic ON articles(topic);

CREATE TABLE IF NOT EXISTS resources (
	id         TEXT PRIMARY KEY,
	topic      TEXT NOT NULL,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL DEFAULT '',
	added_by   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resources_topic ON resources(topic);

CREATE TABLE IF NOT EXISTS users (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS memberships (
	user_id TEXT NOT NULL,
	topic   TEXT NOT NULL,
	role    TEXT NOT NULL,
	PRIMARY KEY (user_id, topic, role)
);

CREATE TABLE IF NOT EXISTS prompts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
`

// ContentStore implements the content store interfaces on SQLite.
type ContentStore struct {
	db *sql.DB
}

var (
	_ content.ArticleStore    = (*ContentStore)(nil)
	_ content.ResourceStore   = (*ContentStore)(nil)
	_ content.MembershipStore = (*ContentStore)(nil)
	_ content.PromptStore     = (*ContentStore)(nil)
)

// NewContentStore opens (or creates) the database at path and applies
// the schema. SQLite allows a single writer, so the pool is capped at
// one connection.
func NewContentStore(path string) (*ContentStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &ContentStore{db: db}, nil
}

// Close closes the database.
func (s *ContentStore) Close() error {
	return s.db.Close()
}

func (s *ContentStore) GetArticle(ctx context.Context, id string) (*content.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, title, body, status, tonality, created_at, updated_at
		 FROM articles WHERE id = ?`, id)
	return scanArticle(row, id)
}

func scanArticle(row *sql.Row, id string) (*content.Article, error) {
	var a content.Article
	var status string
	var createdAt, updatedAt int64
	err := row.Scan(&a.ID, &a.Topic, &a.Title, &a.Body, &status, &a.Tonality, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", content.ErrArticleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}
	a.Status = content.ArticleStatus(status)
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	a.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &a, nil
}

func (s *ContentStore) SaveArticle(ctx context.Context, a *content.Article) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (id, topic, title, body, status, tonality, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			topic = excluded.topic, title = excluded.title, body = excluded.body,
			status = excluded.status, tonality = excluded.tonality,
			updated_at = excluded.updated_at`,
		a.ID, a.Topic, a.Title, a.Body, string(a.Status), a.Tonality,
		a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}
	return nil
}

// SetStatus applies a lifecycle transition inside a transaction so the
// validity check and the update are atomic.
func (s *ContentStore) SetStatus(ctx context.Context, id string, status content.ArticleStatus) (*content.Article, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM articles WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", content.ErrArticleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read article status: %w", err)
	}
	if !content.ValidTransition(content.ArticleStatus(current), status) {
		return nil, fmt.Errorf("%w: %s -> %s", content.ErrInvalidTransition, current, status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE articles SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().UnixMilli(), id); err != nil {
		return nil, fmt.Errorf("failed to update article status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return s.GetArticle(ctx, id)
}

func (s *ContentStore) DeleteArticle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", content.ErrArticleNotFound, id)
	}
	return nil
}

func (s *ContentStore) ListArticles(ctx context.Context, topic string) ([]content.Article, error) {
	query := `SELECT id, topic, title, body, status, tonality, created_at, updated_at
	          FROM articles`
	args := []any{}
	if topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var out []content.Article
	for rows.Next() {
		var a content.Article
		var status string
		var createdAt, updatedAt int64
		if err := rows.Scan(&a.ID, &a.Topic, &a.Title, &a.Body, &status, &a.Tonality, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.Status = content.ArticleStatus(status)
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		a.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ContentStore) GetResource(ctx context.Context, id string) (*content.Resource, error) {
	var r content.Resource
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, topic, name, url, added_by, created_at FROM resources WHERE id = ?`, id).
		Scan(&r.ID, &r.Topic, &r.Name, &r.URL, &r.AddedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", content.ErrResourceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan resource: %w", err)
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &r, nil
}

func (s *ContentStore) SaveResource(ctx context.Context, r *content.Resource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (id, topic, name, url, added_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			topic = excluded.topic, name = excluded.name, url = excluded.url,
			added_by = excluded.added_by`,
		r.ID, r.Topic, r.Name, r.URL, r.AddedBy, r.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save resource: %w", err)
	}
	return nil
}

func (s *ContentStore) DeleteResource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", content.ErrResourceNotFound, id)
	}
	return nil
}

func (s *ContentStore) ListResources(ctx context.Context, topic string) ([]content.Resource, error) {
	query := `SELECT id, topic, name, url, added_by, created_at FROM resources`
	args := []any{}
	if topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var out []content.Resource
	for rows.Next() {
		var r content.Resource
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Topic, &r.Name, &r.URL, &r.AddedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ContentStore) GetUser(ctx context.Context, id string) (*content.User, error) {
	var u content.User
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, active FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", content.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Active = active != 0
	return &u, nil
}

func (s *ContentStore) SaveUser(ctx context.Context, u *content.User) error {
	active := 0
	if u.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, active) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, active = excluded.active`,
		u.ID, u.Name, active)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *ContentStore) AssignRole(ctx context.Context, m content.Membership) error {
	if _, err := s.GetUser(ctx, m.UserID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, topic, role) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, topic, role) DO NOTHING`,
		m.UserID, m.Topic, m.Role)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

func (s *ContentStore) RevokeRole(ctx context.Context, m content.Membership) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = ? AND topic = ? AND role = ?`,
		m.UserID, m.Topic, m.Role)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s has no %s role on topic %s",
			content.ErrMembershipNotFound, m.UserID, m.Role, m.Topic)
	}
	return nil
}

func (s *ContentStore) Deactivate(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET active = 0 WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", content.ErrUserNotFound, userID)
	}
	return nil
}

func (s *ContentStore) ListMemberships(ctx context.Context, userID string) ([]content.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, topic, role FROM memberships WHERE user_id = ? ORDER BY topic, role`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var out []content.Membership
	for rows.Next() {
		var m content.Membership
		if err := rows.Scan(&m.UserID, &m.Topic, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *ContentStore) GetPrompt(ctx context.Context, id string) (*content.Prompt, error) {
	var p content.Prompt
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, text, updated_at FROM prompts WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Text, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", content.ErrPromptNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan prompt: %w", err)
	}
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &p, nil
}

func (s *ContentStore) SavePrompt(ctx context.Context, p *content.Prompt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (id, name, text, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, text = excluded.text, updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Text, p.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save prompt: %w", err)
	}
	return nil
}
