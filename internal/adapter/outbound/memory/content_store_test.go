package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/pressroom-io/pressroom/internal/domain/content"
)

func TestArticleRoundTripReturnsCopies(t *testing.T) {
	store := NewContentStore()
	ctx := context.Background()

	if err := store.SaveArticle(ctx, &content.Article{ID: "a1", Topic: "macro", Title: "t", Status: content.StatusDraft}); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}

	got, err := store.GetArticle(ctx, "a1")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	got.Title = "mutated"

	again, _ := store.GetArticle(ctx, "a1")
	if again.Title != "t" {
		t.Fatal("GetArticle exposed internal state")
	}
}

func TestSetStatusEnforcesLifecycle(t *testing.T) {
	store := NewContentStore()
	ctx := context.Background()
	_ = store.SaveArticle(ctx, &content.Article{ID: "a1", Topic: "macro", Status: content.StatusDraft})

	if _, err := store.SetStatus(ctx, "a1", content.StatusPublished); !errors.Is(err, content.ErrInvalidTransition) {
		t.Fatalf("draft->published err = %v, want ErrInvalidTransition", err)
	}
	if _, err := store.SetStatus(ctx, "a1", content.StatusInReview); err != nil {
		t.Fatalf("draft->in_review: %v", err)
	}
	updated, err := store.SetStatus(ctx, "a1", content.StatusPublished)
	if err != nil {
		t.Fatalf("in_review->published: %v", err)
	}
	if updated.Status != content.StatusPublished {
		t.Fatalf("status = %s", updated.Status)
	}

	if _, err := store.SetStatus(ctx, "nope", content.StatusInReview); !errors.Is(err, content.ErrArticleNotFound) {
		t.Fatalf("missing article err = %v", err)
	}
}

func TestListArticlesFiltersByTopic(t *testing.T) {
	store := NewContentStore()
	ctx := context.Background()
	_ = store.SaveArticle(ctx, &content.Article{ID: "a1", Topic: "macro", Status: content.StatusDraft})
	_ = store.SaveArticle(ctx, &content.Article{ID: "a2", Topic: "equity", Status: content.StatusDraft})
	_ = store.SaveArticle(ctx, &content.Article{ID: "a3", Topic: "macro", Status: content.StatusDraft})

	macro, err := store.ListArticles(ctx, "macro")
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(macro) != 2 || macro[0].ID != "a1" || macro[1].ID != "a3" {
		t.Fatalf("macro articles = %+v", macro)
	}

	all, _ := store.ListArticles(ctx, "")
	if len(all) != 3 {
		t.Fatalf("all articles = %d, want 3", len(all))
	}
}

func TestAssignRoleIsIdempotent(t *testing.T) {
	store := NewContentStore()
	ctx := context.Background()
	_ = store.SaveUser(ctx, &content.User{ID: "u1", Active: true})

	m := content.Membership{UserID: "u1", Topic: "macro", Role: "analyst"}
	if err := store.AssignRole(ctx, m); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := store.AssignRole(ctx, m); err != nil {
		t.Fatalf("repeat AssignRole: %v", err)
	}

	held, _ := store.ListMemberships(ctx, "u1")
	if len(held) != 1 {
		t.Fatalf("memberships = %v, want one", held)
	}
}

func TestRevokeRoleMissingMembership(t *testing.T) {
	store := NewContentStore()
	ctx := context.Background()
	_ = store.SaveUser(ctx, &content.User{ID: "u1", Active: true})

	err := store.RevokeRole(ctx, content.Membership{UserID: "u1", Topic: "macro", Role: "analyst"})
	if !errors.Is(err, content.ErrMembershipNotFound) {
		t.Fatalf("err = %v, want ErrMembershipNotFound", err)
	}
}

func TestDeactivateUnknownUser(t *testing.T) {
	store := NewContentStore()
	if err := store.Deactivate(context.Background(), "ghost"); !errors.Is(err, content.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
