package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pressroom-io/pressroom/internal/adapter/outbound/memory"
	"github.com/pressroom-io/pressroom/internal/domain/content"
	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
)

// handlerFixture wires the built-in handlers to in-memory stores and a
// deterministic dispatch store.
type handlerFixture struct {
	store   *dispatch.Store
	content *memory.ContentStore
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	contentStore := memory.NewContentStore()
	handlers := NewActionHandlers(contentStore, contentStore, contentStore, contentStore, testLogger())
	store := dispatch.NewStore()
	t.Cleanup(handlers.RegisterAll(store))
	return &handlerFixture{store: store, content: contentStore}
}

// run dispatches and executes one action.
func (f *handlerFixture) run(t *testing.T, actionType dispatch.ActionType, params map[string]any) *dispatch.Result {
	t.Helper()
	f.store.Dispatch(actionType, params)
	return f.store.ExecuteCurrentAction(context.Background())
}

func TestSaveDraftCreatesArticle(t *testing.T) {
	f := newHandlerFixture(t)

	result := f.run(t, dispatch.ActionSaveDraft, map[string]any{
		"topic": "macro",
		"title": "Inflation outlook",
		"body":  "…",
	})
	if result == nil || !result.Success {
		t.Fatalf("save_draft failed: %+v", result)
	}
	articleID, _ := result.Data["article_id"].(string)
	if articleID == "" {
		t.Fatal("no article_id in result data")
	}

	article, err := f.content.GetArticle(context.Background(), articleID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if article.Status != content.StatusDraft || article.Title != "Inflation outlook" {
		t.Fatalf("article = %+v", article)
	}
}

func TestSaveDraftRequiresTopicForNewArticles(t *testing.T) {
	f := newHandlerFixture(t)

	result := f.run(t, dispatch.ActionSaveDraft, map[string]any{"title": "untitled"})
	if result == nil || result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if !strings.Contains(result.Error, "topic") {
		t.Fatalf("error %q does not name the missing param", result.Error)
	}
}

func TestArticleLifecycle(t *testing.T) {
	f := newHandlerFixture(t)
	seedArticle(t, f, "a1", content.StatusDraft)

	if result := f.run(t, dispatch.ActionSubmitForReview, map[string]any{"article_id": "a1"}); !result.Success {
		t.Fatalf("submit_for_review: %+v", result)
	}
	if result := f.run(t, dispatch.ActionPublishArticle, map[string]any{"article_id": "a1"}); !result.Success {
		t.Fatalf("publish_article: %+v", result)
	}

	// Recalling without confirmation must not change anything.
	result := f.run(t, dispatch.ActionRecallArticle, map[string]any{"article_id": "a1"})
	if result.Success {
		t.Fatal("recall succeeded without confirmation")
	}
	if !strings.Contains(result.Error, "confirmation") {
		t.Fatalf("error %q does not mention confirmation", result.Error)
	}
	article, _ := f.content.GetArticle(context.Background(), "a1")
	if article.Status != content.StatusPublished {
		t.Fatalf("unconfirmed recall had side effects: status %s", article.Status)
	}

	result = f.run(t, dispatch.ActionRecallArticle, map[string]any{"article_id": "a1", "confirmed": true})
	if !result.Success {
		t.Fatalf("confirmed recall failed: %+v", result)
	}
	article, _ = f.content.GetArticle(context.Background(), "a1")
	if article.Status != content.StatusRecalled {
		t.Fatalf("status = %s, want recalled", article.Status)
	}
}

func TestInvalidTransitionIsFailureResult(t *testing.T) {
	f := newHandlerFixture(t)
	seedArticle(t, f, "a1", content.StatusDraft)

	// Draft articles cannot be published directly.
	result := f.run(t, dispatch.ActionPublishArticle, map[string]any{"article_id": "a1"})
	if result == nil || result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if !strings.Contains(result.Error, "invalid status transition") {
		t.Fatalf("error = %q", result.Error)
	}
}

func TestConfirmationGateOnEveryDestructiveAction(t *testing.T) {
	tests := []struct {
		action dispatch.ActionType
		params map[string]any
	}{
		{dispatch.ActionRecallArticle, map[string]any{"article_id": "a1"}},
		{dispatch.ActionPurgeArticle, map[string]any{"article_id": "a1"}},
		{dispatch.ActionDeleteResource, map[string]any{"resource_id": "r1"}},
		{dispatch.ActionRevokeRole, map[string]any{"user_id": "u1", "topic": "macro", "role": "analyst"}},
		{dispatch.ActionDeactivateUser, map[string]any{"user_id": "u1"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			f := newHandlerFixture(t)
			result := f.run(t, tt.action, tt.params)
			if result == nil || result.Success {
				t.Fatalf("unconfirmed %s succeeded: %+v", tt.action, result)
			}
			if !strings.Contains(result.Error, "confirmation") {
				t.Fatalf("error %q does not mention confirmation", result.Error)
			}
		})
	}
}

func TestPurgeArticleConfirmed(t *testing.T) {
	f := newHandlerFixture(t)
	seedArticle(t, f, "a1", content.StatusDraft)

	result := f.run(t, dispatch.ActionPurgeArticle, map[string]any{"article_id": "a1", "confirmed": true})
	if !result.Success {
		t.Fatalf("purge failed: %+v", result)
	}
	if _, err := f.content.GetArticle(context.Background(), "a1"); err == nil {
		t.Fatal("article survived the purge")
	}
}

func TestResourceActions(t *testing.T) {
	f := newHandlerFixture(t)

	result := f.run(t, dispatch.ActionCreateResource, map[string]any{
		"topic": "macro",
		"name":  "CPI dataset",
		"url":   "https://example.com/cpi.csv",
	})
	if !result.Success {
		t.Fatalf("create_resource: %+v", result)
	}
	resourceID, _ := result.Data["resource_id"].(string)

	result = f.run(t, dispatch.ActionDeleteResource, map[string]any{"resource_id": resourceID, "confirmed": true})
	if !result.Success {
		t.Fatalf("delete_resource: %+v", result)
	}
	if _, err := f.content.GetResource(context.Background(), resourceID); err == nil {
		t.Fatal("resource survived deletion")
	}
}

func TestSetTonality(t *testing.T) {
	f := newHandlerFixture(t)
	seedArticle(t, f, "a1", content.StatusDraft)

	result := f.run(t, dispatch.ActionSetTonality, map[string]any{"article_id": "a1", "tonality": "neutral"})
	if !result.Success {
		t.Fatalf("set_tonality: %+v", result)
	}
	article, _ := f.content.GetArticle(context.Background(), "a1")
	if article.Tonality != "neutral" {
		t.Fatalf("tonality = %q", article.Tonality)
	}
}

func TestNavigationActions(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		action     dispatch.ActionType
		params     map[string]any
		wantTarget string
	}{
		{dispatch.ActionGotoAnalystDashboard, map[string]any{"topic": "macro"}, "/topics/macro/analyst"},
		{dispatch.ActionGotoAnalystDashboard, nil, "/dashboard/analyst"},
		{dispatch.ActionGotoEditorDesk, map[string]any{"topic": "equity"}, "/topics/equity/editor"},
		{dispatch.ActionGotoTopicOverview, map[string]any{"topic": "macro"}, "/topics/macro"},
		{dispatch.ActionGotoAdminGlobal, nil, "/admin"},
	}
	for _, tt := range tests {
		result := f.run(t, tt.action, tt.params)
		if !result.Success {
			t.Fatalf("%s: %+v", tt.action, result)
		}
		if target, _ := result.Data["target"].(string); target != tt.wantTarget {
			t.Errorf("%s target = %q, want %q", tt.action, result.Data["target"], tt.wantTarget)
		}
	}

	// Topic overview without a topic has nowhere to go.
	result := f.run(t, dispatch.ActionGotoTopicOverview, nil)
	if result.Success {
		t.Fatal("goto_topic_overview succeeded without a topic")
	}
}

func TestMembershipActions(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	if err := f.content.SaveUser(ctx, &content.User{ID: "u1", Name: "Avery", Active: true}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	if result := f.run(t, dispatch.ActionAssignRole, map[string]any{
		"user_id": "u1", "topic": "macro", "role": "analyst",
	}); !result.Success {
		t.Fatalf("assign_role: %+v", result)
	}

	// Unknown roles are rejected before touching the store.
	if result := f.run(t, dispatch.ActionAssignRole, map[string]any{
		"user_id": "u1", "topic": "macro", "role": "czar",
	}); result.Success {
		t.Fatal("assign_role accepted an unknown role")
	}

	if result := f.run(t, dispatch.ActionRevokeRole, map[string]any{
		"user_id": "u1", "topic": "macro", "role": "analyst", "confirmed": true,
	}); !result.Success {
		t.Fatalf("revoke_role: %+v", result)
	}

	if result := f.run(t, dispatch.ActionDeactivateUser, map[string]any{
		"user_id": "u1", "confirmed": true,
	}); !result.Success {
		t.Fatalf("deactivate_user: %+v", result)
	}
	user, _ := f.content.GetUser(ctx, "u1")
	if user.Active {
		t.Fatal("user still active")
	}
}

func TestUpdatePrompt(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	if err := f.content.SavePrompt(ctx, &content.Prompt{ID: "p1", Name: "assistant", Text: "old"}); err != nil {
		t.Fatalf("SavePrompt: %v", err)
	}

	result := f.run(t, dispatch.ActionUpdatePrompt, map[string]any{"prompt_id": "p1", "text": "new"})
	if !result.Success {
		t.Fatalf("update_prompt: %+v", result)
	}
	prompt, _ := f.content.GetPrompt(ctx, "p1")
	if prompt.Text != "new" {
		t.Fatalf("text = %q", prompt.Text)
	}
}

func seedArticle(t *testing.T, f *handlerFixture, id string, status content.ArticleStatus) {
	t.Helper()
	err := f.content.SaveArticle(context.Background(), &content.Article{
		ID:        id,
		Topic:     "macro",
		Title:     "seed",
		Status:    status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed article: %v", err)
	}
}
