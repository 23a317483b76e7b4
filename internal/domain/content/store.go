package content

import (
	"context"
	"errors"
)

// Errors shared by all store implementations.
var (
	// ErrArticleNotFound is returned when an article does not exist.
	ErrArticleNotFound = errors.New("article not found")
	// ErrResourceNotFound is returned when a resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrPromptNotFound is returned when a prompt does not exist.
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrMembershipNotFound is returned when revoking a role the user
	// does not hold.
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrInvalidTransition is returned for editorial moves the lifecycle
	// does not permit (e.g. publishing a purged article).
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ArticleStore persists articles.
type ArticleStore interface {
	// GetArticle returns an article by ID. Returns ErrArticleNotFound
	// if it does not exist.
	GetArticle(ctx context.Context, id string) (*Article, error)
	// SaveArticle creates or updates an article.
	SaveArticle(ctx context.Context, a *Article) error
	// SetStatus moves an article to the given lifecycle state.
	// Returns ErrInvalidTransition when the move is not permitted.
	SetStatus(ctx context.Context, id string, status ArticleStatus) (*Article, error)
	// DeleteArticle permanently removes an article.
	DeleteArticle(ctx context.Context, id string) error
	// ListArticles returns all articles for a topic.
	ListArticles(ctx context.Context, topic string) ([]Article, error)
}

// ResourceStore persists topic resources.
type ResourceStore interface {
	// GetResource returns a resource by ID. Returns ErrResourceNotFound
	// if it does not exist.
	GetResource(ctx context.Context, id string) (*Resource, error)
	// SaveResource creates or updates a resource.
	SaveResource(ctx context.Context, r *Resource) error
	// DeleteResource removes a resource.
	DeleteResource(ctx context.Context, id string) error
	// ListResources returns all resources for a topic.
	ListResources(ctx context.Context, topic string) ([]Resource, error)
}

// MembershipStore persists users and their topic roles. Mutated by the
// admin actions (assign_role, revoke_role, deactivate_user).
type MembershipStore interface {
	// GetUser returns a user by ID. Returns ErrUserNotFound if absent.
	GetUser(ctx context.Context, id string) (*User, error)
	// SaveUser creates or updates a user.
	SaveUser(ctx context.Context, u *User) error
	// AssignRole grants the user a role on a topic. Idempotent.
	AssignRole(ctx context.Context, m Membership) error
	// RevokeRole removes the user's role on a topic.
	// Returns ErrMembershipNotFound when the role was never assigned.
	RevokeRole(ctx context.Context, m Membership) error
	// Deactivate marks a user account inactive.
	Deactivate(ctx context.Context, userID string) error
	// ListMemberships returns a user's topic roles.
	ListMemberships(ctx context.Context, userID string) ([]Membership, error)
}

// PromptStore persists assistant prompts.
type PromptStore interface {
	// GetPrompt returns a prompt by ID. Returns ErrPromptNotFound if absent.
	GetPrompt(ctx context.Context, id string) (*Prompt, error)
	// SavePrompt creates or updates a prompt.
	SavePrompt(ctx context.Context, p *Prompt) error
}

// ValidTransition reports whether an article may move from one lifecycle
// state to another. Purge is modeled as deletion, not a transition.
func ValidTransition(from, to ArticleStatus) bool {
	switch to {
	case StatusDraft:
		// Back to draft from review (editor bounce).
		return from == StatusDraft || from == StatusInReview
	case StatusInReview:
		return from == StatusDraft
	case StatusPublished:
		return from == StatusInReview || from == StatusRecalled
	case StatusRecalled:
		return from == StatusPublished
	default:
		return false
	}
}
