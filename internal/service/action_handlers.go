package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pressroom-io/pressroom/internal/domain/content"
	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
	"github.com/pressroom-io/pressroom/internal/domain/identity"
	"github.com/pressroom-io/pressroom/internal/domain/permission"
)

// ActionHandlers holds the built-in handlers for every action type in
// the permission table. Content mutations go through the content
// stores; navigation actions return the target path in the result data.
type ActionHandlers struct {
	articles  content.ArticleStore
	resources content.ResourceStore
	members   content.MembershipStore
	prompts   content.PromptStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewActionHandlers creates the handler set backed by the given stores.
func NewActionHandlers(articles content.ArticleStore, resources content.ResourceStore, members content.MembershipStore, prompts content.PromptStore, logger *slog.Logger) *ActionHandlers {
	return &ActionHandlers{
		articles:  articles,
		resources: resources,
		members:   members,
		prompts:   prompts,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterAll registers every built-in handler on the store and returns
// a single unregister function covering all of them.
func (h *ActionHandlers) RegisterAll(store *dispatch.Store) func() {
	handlers := map[dispatch.ActionType]dispatch.Handler{
		dispatch.ActionSaveDraft:            h.handleSaveDraft,
		dispatch.ActionSubmitForReview:      h.handleSubmitForReview,
		dispatch.ActionPublishArticle:       h.handlePublishArticle,
		dispatch.ActionRecallArticle:        h.handleRecallArticle,
		dispatch.ActionPurgeArticle:         h.handlePurgeArticle,
		dispatch.ActionCreateResource:       h.handleCreateResource,
		dispatch.ActionDeleteResource:       h.handleDeleteResource,
		dispatch.ActionSetTonality:          h.handleSetTonality,
		dispatch.ActionGotoAnalystDashboard: h.handleGotoAnalystDashboard,
		dispatch.ActionGotoEditorDesk:       h.handleGotoEditorDesk,
		dispatch.ActionGotoTopicOverview:    h.handleGotoTopicOverview,
		dispatch.ActionGotoAdminGlobal:      h.handleGotoAdminGlobal,
		dispatch.ActionAssignRole:           h.handleAssignRole,
		dispatch.ActionRevokeRole:           h.handleRevokeRole,
		dispatch.ActionDeactivateUser:       h.handleDeactivateUser,
		dispatch.ActionUpdatePrompt:         h.handleUpdatePrompt,
	}

	unregisters := make([]func(), 0, len(handlers))
	for actionType, fn := range handlers {
		unregisters = append(unregisters, store.RegisterHandler(actionType, fn))
	}
	return func() {
		for _, unregister := range unregisters {
			unregister()
		}
	}
}

// confirmGate rejects a destructive action whose params do not carry
// confirmed=true. The check runs before any store access so an
// unconfirmed action has no side effects.
func confirmGate(env dispatch.Envelope) (dispatch.Result, bool) {
	if env.Confirmed() {
		return dispatch.Result{}, true
	}
	return dispatch.FailureResult(env.Type, fmt.Sprintf(
		"%s requires confirmation: re-dispatch with params.confirmed set to true", env.Type)), false
}

// requireString extracts a mandatory string param.
func requireString(env dispatch.Envelope, key string) (string, *dispatch.Result) {
	v := env.StringParam(key)
	if v == "" {
		r := dispatch.FailureResult(env.Type, fmt.Sprintf("%s is required", key))
		return "", &r
	}
	return v, nil
}

func (h *ActionHandlers) handleSaveDraft(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	articleID := env.StringParam("article_id")

	var article *content.Article
	if articleID == "" {
		topic, fail := requireString(env, "topic")
		if fail != nil {
			return *fail, nil
		}
		article = &content.Article{
			ID:        uuid.NewString(),
			Topic:     topic,
			Status:    content.StatusDraft,
			CreatedAt: h.now(),
		}
	} else {
		existing, err := h.articles.GetArticle(ctx, articleID)
		if err != nil {
			return dispatch.Result{}, err
		}
		article = existing
	}

	if title := env.StringParam("title"); title != "" {
		article.Title = title
	}
	if body := env.StringParam("body"); body != "" {
		article.Body = body
	}
	if tonality := env.StringParam("tonality"); tonality != "" {
		article.Tonality = tonality
	}
	article.Status = content.StatusDraft
	article.UpdatedAt = h.now()

	if err := h.articles.SaveArticle(ctx, article); err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.SuccessResult(env.Type, fmt.Sprintf("draft %s saved", article.ID),
		map[string]any{"article_id": article.ID}), nil
}

func (h *ActionHandlers) handleSubmitForReview(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	return h.transitionArticle(ctx, env, content.StatusInReview, "submitted for review")
}

func (h *ActionHandlers) handlePublishArticle(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	return h.transitionArticle(ctx, env, content.StatusPublished, "published")
}

func (h *ActionHandlers) handleRecallArticle(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	if result, ok := confirmGate(env); !ok {
		return result, nil
	}
	return h.transitionArticle(ctx, env, content.StatusRecalled, "recalled")
}

// transitionArticle applies a lifecycle transition, reporting invalid
// transitions as failure results rather than errors.
func (h *ActionHandlers) transitionArticle(ctx context.Context, env dispatch.Envelope, to content.ArticleStatus, verb string) (dispatch.Result, error) {
	articleID, fail := requireString(env, "article_id")
	if fail != nil {
		return *fail, nil
	}

	if _, err := h.articles.SetStatus(ctx, articleID, to); err != nil {
		if errors.Is(err, content.ErrInvalidTransition) {
			return dispatch.FailureResult(env.Type, err.Error()), nil
		}
		return dispatch.Result{}, err
	}
	return dispatch.SuccessResult(env.Type, fmt.Sprintf("article %s %s", articleID, verb),
		map[string]any{"article_id": articleID, "status": string(to)}), nil
}

func (h *ActionHandlers) handlePurgeArticle(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	if result, ok := confirmGate(env); !ok {
		return result, nil
	}
	articleID, fail := requireString(env, "article_id")
	if fail != nil {
		return *fail, nil
	}

	if err := h.articles.DeleteArticle(ctx, articleID); err != nil {
		return dispatch.Result{}, err
	}
	h.logger.Info("article purged", "article_id", articleID)
	return dispatch.SuccessResult(env.Type, fmt.Sprintf("article %s purged", articleID), nil), nil
}

func (h *ActionHandlers) handleCreateResource(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	topic, fail := requireString(env, "topic")
	if fail != nil {
		return *fail, nil
	}
	name, fail := requireString(env, "name")
	if fail != nil {
		return *fail, nil
	}

	resource := &content.Resource{
		ID:        uuid.NewString(),
		Topic:     topic,
		Name:      name,
		URL:       env.StringParam("url"),
		CreatedAt: h.now(),
	}
	if err := h.resources.SaveResource(ctx, resource); err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.SuccessResult(env.Type, fmt.Sprintf("resource %s created", resource.ID),
		map[string]any{"resource_id": resource.ID}), nil
}

func (h *ActionHandlers) handleDeleteResource(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	if result, ok := confirmGate(env); !ok {
		return result, nil
	}
	resourceID, fail := requireString(env, "resource_id")
	if fail != nil {
		return *fail, nil
	}

	if err := h.resources.DeleteResource(ctx, resourceID); err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.SuccessResult(env.Type, fmt.Sprintf("resource %s deleted", resourceID), nil), nil
}

func (h *ActionHandlers) handleSetTonality(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	articleID, fail := requireString(env, "article_id")
	if fail != nil {
		return *fail, nil
	}
	tonality, fail := requireString(env, "tonality")
	if fail != nil {
		return *fail, nil
	}

	article, err := h.articles.GetArticle(ctx, articleID)
	if err != nil {
		return dispatch.Result{}, err
	}
	article.Tonality = tonality
	article.UpdatedAt = h.now()
	if err := h.articles.SaveArticle(ctx, article); err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.SuccessResult(env.Type, fmt.Sprintf("tonality of article %s set to %s", articleID, tonality), nil), nil
}

func (h *ActionHandlers) handleGotoAnalystDashboard(_ context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	return navigationResult(env, identity.RoleAnalyst), nil
}

func (h *ActionHandlers) handleGotoEditorDesk(_ context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	return navigationResult(env, identity.RoleEditor), nil
}

func (h *ActionHandlers) handleGotoTopicOverview(_ context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	topic, fail := requireString(env, "topic")
	if fail != nil {
		return *fail, nil
	}
	target := "/topics/" + topic
	return dispatch.SuccessResult(env.Type, "navigating to "+target,
		map[string]any{"target": target}), nil
}

func (h *ActionHandlers) handleGotoAdminGlobal(_ context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	return dispatch.SuccessResult(env.Type, "navigating to /admin",
		map[string]any{"target": "/admin"}), nil
}

// navigationResult builds the target for role dashboards: topic-scoped
// when the envelope names a topic, the global role dashboard otherwise.
func navigationResult(env dispatch.Envelope, role identity.Role) dispatch.Result {
	var target string
	if topic := env.StringParam("topic"); topic != "" {
		target = permission.DashboardTarget(role, topic)
	} else {
		target = "/dashboard/" + string(role)
	}
	return dispatch.SuccessResult(env.Type, "navigating to "+target,
		map[string]any{"target": target})
}

func (h *ActionHandlers) handleAssignRole(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	userID, fail := requireString(env, "user_id")
	if fail != nil {
		return *fail, nil
	}
	topic, fail := requireString(env, "topic")
	if fail != nil {
		return *fail, nil
	}
	roleName, fail := requireString(env, "role")
	if fail != nil {
		return *fail, nil
	}
	role := identity.Role(roleName)
	if !role.IsValid() {
		return dispatch.FailureResult(env.Type, fmt.Sprintf("unknown role %q", roleName)), nil
	}

	if err := h.members.AssignRole(ctx, content.Membership{UserID: userID, Topic: topic, Role: string(role)}); err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.SuccessResult(env.Type,
		fmt.Sprintf("role %s on topic %s assigned to user %s", role, topic, userID), nil), nil
}

func (h *ActionHandlers) handleRevokeRole(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	if result, ok := confirmGate(env); !ok {
		return result, nil
	}
	userID, fail := requireString(env, "user_id")
	if fail != nil {
		return *fail, nil
	}
	topic, fail := requireString(env, "topic")
	if fail != nil {
		return *fail, nil
	}
	roleName, fail := requireString(env, "role")
	if fail != nil {
		return *fail, nil
	}

	if err := h.members.RevokeRole(ctx, content.Membership{UserID: userID, Topic: topic, Role: roleName}); err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.SuccessResult(env.Type,
		fmt.Sprintf("role %s on topic %s revoked from user %s", roleName, topic, userID), nil), nil
}

func (h *ActionHandlers) handleDeactivateUser(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	if result, ok := confirmGate(env); !ok {
		return result, nil
	}
	userID, fail := requireString(env, "user_id")
	if fail != nil {
		return *fail, nil
	}

	if err := h.members.Deactivate(ctx, userID); err != nil {
		return dispatch.Result{}, err
	}
	h.logger.Info("user deactivated", "user_id", userID)
	return dispatch.SuccessResult(env.Type, fmt.Sprintf("user %s deactivated", userID), nil), nil
}

func (h *ActionHandlers) handleUpdatePrompt(ctx context.Context, env dispatch.Envelope) (dispatch.Result, error) {
	promptID, fail := requireString(env, "prompt_id")
	if fail != nil {
		return *fail, nil
	}
	text, fail := requireString(env, "text")
	if fail != nil {
		return *fail, nil
	}

	prompt, err := h.prompts.GetPrompt(ctx, promptID)
	if err != nil {
		return dispatch.Result{}, err
	}
	prompt.Text = text
	prompt.UpdatedAt = h.now()
	if err := h.prompts.SavePrompt(ctx, prompt); err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.SuccessResult(env.Type, fmt.Sprintf("prompt %s updated", promptID), nil), nil
}
