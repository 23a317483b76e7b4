// Package content defines the request/response contracts for the
// persistence collaborator: articles, resources, topic memberships, and
// assistant prompts. The dispatch core treats these stores as opaque; the
// action handlers are their only consumers.
package content

import "time"

// ArticleStatus is the editorial lifecycle state of an article.
type ArticleStatus string

const (
	// StatusDraft is an article being written by an analyst.
	StatusDraft ArticleStatus = "draft"
	// StatusInReview is a draft submitted to the editorial queue.
	StatusInReview ArticleStatus = "in_review"
	// StatusPublished is a live article visible to readers.
	StatusPublished ArticleStatus = "published"
	// StatusRecalled is a published article withdrawn by an editor.
	StatusRecalled ArticleStatus = "recalled"
)

// IsValid returns true if the status is a known lifecycle state.
func (s ArticleStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusPublished, StatusRecalled:
		return true
	default:
		return false
	}
}

// Article is a topic-scoped piece of content.
type Article struct {
	// ID is the unique identifier for this article.
	ID string
	// Topic the article belongs to.
	Topic string
	// Title of the article.
	Title string
	// Body is the article text.
	Body string
	// Status is the editorial lifecycle state.
	Status ArticleStatus
	// Tonality names the writing tonality applied to the article.
	Tonality string
	// AuthorID is the identity that created the draft.
	AuthorID string
	// CreatedAt is when the article was created (UTC).
	CreatedAt time.Time
	// UpdatedAt is when the article was last modified (UTC).
	UpdatedAt time.Time
}

// Resource is a reference attached to a topic (source link, dataset, ...).
type Resource struct {
	// ID is the unique identifier for this resource.
	ID string
	// Topic the resource belongs to.
	Topic string
	// Name is a human-readable label.
	Name string
	// URL locates the resource.
	URL string
	// AddedBy is the identity that attached the resource.
	AddedBy string
	// CreatedAt is when the resource was attached (UTC).
	CreatedAt time.Time
}

// User is a platform account as seen by the admin actions.
type User struct {
	// ID is the unique identifier for this user.
	ID string
	// Name is the display name.
	Name string
	// Active indicates whether the account may sign in.
	Active bool
}

// Membership grants a user a role on a topic.
type Membership struct {
	// UserID identifies the member.
	UserID string
	// Topic the role applies to.
	Topic string
	// Role held on the topic.
	Role string
}

// Prompt is a system prompt used by the chat assistant.
type Prompt struct {
	// ID is the unique identifier for this prompt.
	ID string
	// Name labels the prompt.
	Name string
	// Text is the prompt body.
	Text string
	// UpdatedAt is when the prompt was last modified (UTC).
	UpdatedAt time.Time
}
