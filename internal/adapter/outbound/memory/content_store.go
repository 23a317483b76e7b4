// Package memory provides in-memory adapter implementations used in
// development mode and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pressroom-io/pressroom/internal/domain/content"
)

// ContentStore is a thread-safe in-memory implementation of the content
// store interfaces. All reads return copies so callers cannot mutate
// shared state.
type ContentStore struct {
	mu          sync.RWMutex
	articles    map[string]content.Article
	resources   map[string]content.Resource
	users       map[string]content.User
	memberships map[string][]content.Membership // keyed by user ID
	prompts     map[string]content.Prompt
}

// Compile-time interface checks.
var (
	_ content.ArticleStore    = (*ContentStore)(nil)
	_ content.ResourceStore   = (*ContentStore)(nil)
	_ content.MembershipStore = (*ContentStore)(nil)
	_ content.PromptStore     = (*ContentStore)(nil)
)

// NewContentStore creates an empty content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		articles:    make(map[string]content.Article),
		resources:   make(map[string]content.Resource),
		users:       make(map[string]content.User),
		memberships: make(map[string][]content.Membership),
		prompts:     make(map[string]content.Prompt),
	}
}

// GetArticle returns a copy of the article.
func (s *ContentStore) GetArticle(_ context.Context, id string) (*content.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", content.ErrArticleNotFound, id)
	}
	return &a, nil
}

// SaveArticle inserts or replaces an article.
func (s *ContentStore) SaveArticle(_ context.Context, a *content.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[a.ID] = *a
	return nil
}

// SetStatus applies a lifecycle transition, rejecting moves the
// lifecycle does not permit.
func (s *ContentStore) SetStatus(_ context.Context, id string, status content.ArticleStatus) (*content.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", content.ErrArticleNotFound, id)
	}
	if !content.ValidTransition(a.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", content.ErrInvalidTransition, a.Status, status)
	}
	a.Status = status
	s.articles[id] = a
	return &a, nil
}

// DeleteArticle removes an article.
func (s *ContentStore) DeleteArticle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[id]; !ok {
		return fmt.Errorf("%w: %s", content.ErrArticleNotFound, id)
	}
	delete(s.articles, id)
	return nil
}

// ListArticles returns articles for a topic (all topics when topic is
// empty), sorted by ID for stable output.
func (s *ContentStore) ListArticles(_ context.Context, topic string) ([]content.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]content.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if topic == "" || a.Topic == topic {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetResource returns a copy of the resource.
func (s *ContentStore) GetResource(_ context.Context, id string) (*content.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", content.ErrResourceNotFound, id)
	}
	return &r, nil
}

// SaveResource inserts or replaces a resource.
func (s *ContentStore) SaveResource(_ context.Context, r *content.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.ID] = *r
	return nil
}

// DeleteResource removes a resource.
func (s *ContentStore) DeleteResource(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[id]; !ok {
		return fmt.Errorf("%w: %s", content.ErrResourceNotFound, id)
	}
	delete(s.resources, id)
	return nil
}

// ListResources returns resources for a topic, sorted by ID.
func (s *ContentStore) ListResources(_ context.Context, topic string) ([]content.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]content.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		if topic == "" || r.Topic == topic {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetUser returns a copy of the user.
func (s *ContentStore) GetUser(_ context.Context, id string) (*content.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", content.ErrUserNotFound, id)
	}
	return &u, nil
}

// SaveUser inserts or replaces a user.
func (s *ContentStore) SaveUser(_ context.Context, u *content.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

// AssignRole grants a membership. Assigning an already-held role is a
// no-op.
func (s *ContentStore) AssignRole(_ context.Context, m content.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[m.UserID]; !ok {
		return fmt.Errorf("%w: %s", content.ErrUserNotFound, m.UserID)
	}
	for _, existing := range s.memberships[m.UserID] {
		if existing.Topic == m.Topic && existing.Role == m.Role {
			return nil
		}
	}
	s.memberships[m.UserID] = append(s.memberships[m.UserID], m)
	return nil
}

// RevokeRole removes a membership.
func (s *ContentStore) RevokeRole(_ context.Context, m content.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.memberships[m.UserID]
	for i, existing := range held {
		if existing.Topic == m.Topic && existing.Role == m.Role {
			s.memberships[m.UserID] = append(held[:i:i], held[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: user %s has no %s role on topic %s",
		content.ErrMembershipNotFound, m.UserID, m.Role, m.Topic)
}

// Deactivate marks a user inactive.
func (s *ContentStore) Deactivate(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %s", content.ErrUserNotFound, userID)
	}
	u.Active = false
	s.users[userID] = u
	return nil
}

// ListMemberships returns a copy of a user's memberships.
func (s *ContentStore) ListMemberships(_ context.Context, userID string) ([]content.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := s.memberships[userID]
	out := make([]content.Membership, len(held))
	copy(out, held)
	return out, nil
}

// GetPrompt returns a copy of the prompt.
func (s *ContentStore) GetPrompt(_ context.Context, id string) (*content.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", content.ErrPromptNotFound, id)
	}
	return &p, nil
}

// SavePrompt inserts or replaces a prompt.
func (s *ContentStore) SavePrompt(_ context.Context, p *content.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.ID] = *p
	return nil
}
