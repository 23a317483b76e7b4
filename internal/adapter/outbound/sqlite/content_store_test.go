package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pressroom-io/pressroom/internal/domain/content"
)

func newTestStore(t *testing.T) *ContentStore {
	t.Helper()
	store, err := NewContentStore(filepath.Join(t.TempDir(), "pressroom.db"))
	if err != nil {
		t.Fatalf("NewContentStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestArticlePersistence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	article := &content.Article{
		ID:        "a1",
		Topic:     "macro",
		Title:     "Inflation outlook",
		Body:      "…",
		Status:    content.StatusDraft,
		Tonality:  "neutral",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.SaveArticle(ctx, article); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	got, err := store.GetArticle(ctx, "a1")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got.Title != article.Title || got.Status != content.StatusDraft || !got.CreatedAt.Equal(now) {
		t.Fatalf("got %+v", got)
	}

	// Upsert updates in place.
	article.Title = "Revised outlook"
	if err := store.SaveArticle(ctx, article); err != nil {
		t.Fatalf("second SaveArticle: %v", err)
	}
	got, _ = store.GetArticle(ctx, "a1")
	if got.Title != "Revised outlook" {
		t.Fatalf("title = %q", got.Title)
	}

	if _, err := store.GetArticle(ctx, "missing"); !errors.Is(err, content.ErrArticleNotFound) {
		t.Fatalf("err = %v, want ErrArticleNotFound", err)
	}
}

func TestSetStatusTransactional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	_ = store.SaveArticle(ctx, &content.Article{ID: "a1", Topic: "macro", Status: content.StatusDraft, CreatedAt: now, UpdatedAt: now})

	if _, err := store.SetStatus(ctx, "a1", content.StatusRecalled); !errors.Is(err, content.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	// The failed transition must not have altered the row.
	got, _ := store.GetArticle(ctx, "a1")
	if got.Status != content.StatusDraft {
		t.Fatalf("status = %s after failed transition", got.Status)
	}

	updated, err := store.SetStatus(ctx, "a1", content.StatusInReview)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Status != content.StatusInReview {
		t.Fatalf("status = %s", updated.Status)
	}
}

func TestListArticlesByTopic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for _, a := range []content.Article{
		{ID: "a1", Topic: "macro", Status: content.StatusDraft},
		{ID: "a2", Topic: "equity", Status: content.StatusDraft},
		{ID: "a3", Topic: "macro", Status: content.StatusDraft},
	} {
		a.CreatedAt, a.UpdatedAt = now, now
		if err := store.SaveArticle(ctx, &a); err != nil {
			t.Fatalf("SaveArticle: %v", err)
		}
	}

	macro, err := store.ListArticles(ctx, "macro")
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(macro) != 2 {
		t.Fatalf("macro = %d articles, want 2", len(macro))
	}
}

func TestMembershipsAndUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveUser(ctx, &content.User{ID: "u1", Name: "Avery", Active: true}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	m := content.Membership{UserID: "u1", Topic: "macro", Role: "analyst"}
	if err := store.AssignRole(ctx, m); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	// ON CONFLICT DO NOTHING: repeat assignment is a no-op.
	if err := store.AssignRole(ctx, m); err != nil {
		t.Fatalf("repeat AssignRole: %v", err)
	}
	held, _ := store.ListMemberships(ctx, "u1")
	if len(held) != 1 {
		t.Fatalf("memberships = %v", held)
	}

	if err := store.AssignRole(ctx, content.Membership{UserID: "ghost", Topic: "macro", Role: "analyst"}); !errors.Is(err, content.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}

	if err := store.RevokeRole(ctx, m); err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	if err := store.RevokeRole(ctx, m); !errors.Is(err, content.ErrMembershipNotFound) {
		t.Fatalf("err = %v, want ErrMembershipNotFound", err)
	}

	if err := store.Deactivate(ctx, "u1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	user, _ := store.GetUser(ctx, "u1")
	if user.Active {
		t.Fatal("user still active")
	}
}

func TestPromptPersistence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prompt := &content.Prompt{ID: "p1", Name: "assistant", Text: "be helpful", UpdatedAt: time.Now().UTC()}
	if err := store.SavePrompt(ctx, prompt); err != nil {
		t.Fatalf("SavePrompt: %v", err)
	}
	got, err := store.GetPrompt(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if got.Text != "be helpful" {
		t.Fatalf("text = %q", got.Text)
	}
}
