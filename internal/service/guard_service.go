// Package service contains application services: the permission guard
// with override rules, the dispatch service, the built-in action
// handlers, and async audit.
package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/cel-go/cel"

	celeval "github.com/pressroom-io/pressroom/internal/adapter/outbound/cel"
	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
	"github.com/pressroom-io/pressroom/internal/domain/identity"
	"github.com/pressroom-io/pressroom/internal/domain/permission"
)

// OverrideRule is an admin-configured deny rule layered on top of the
// static permission table. A matching rule converts an Allow into a
// DenyError; overrides can only tighten the table, never widen it.
type OverrideRule struct {
	// Name identifies the rule in denials and logs.
	Name string
	// ActionMatch is a glob pattern over action types (e.g. "purge_*").
	ActionMatch string
	// Condition is a CEL expression over action, params, scopes, topic.
	// Empty means "true" (the rule always applies when the glob matches).
	Condition string
	// HelpText is shown to the caller when the rule denies an action.
	HelpText string
}

// compiledOverride is a pre-compiled override rule ready for evaluation.
type compiledOverride struct {
	name        string
	actionMatch string
	program     cel.Program
	helpText    string
}

// lruEntry is a doubly-linked list node for the decision cache.
type lruEntry struct {
	key      uint64
	decision permission.Decision
	prev     *lruEntry
	next     *lruEntry
}

// decisionCache is a bounded LRU cache for guard decisions.
// Thread-safe with a Mutex (both Get and Put mutate LRU order).
type decisionCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

// newDecisionCache creates an LRU cache with the given max size.
func newDecisionCache(maxSize int) *decisionCache {
	return &decisionCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached decision, promoting the entry to most-recently-used.
func (c *decisionCache) Get(key uint64) (permission.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.decision, true
	}
	return permission.Decision{}, false
}

// Put stores a decision, evicting the least recently used entry at capacity.
func (c *decisionCache) Put(key uint64, decision permission.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.decision = decision
		c.moveToHeadLocked(e)
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}
	e := &lruEntry{key: key, decision: decision}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Clear empties the cache. Called on rule reload.
func (c *decisionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*lruEntry, c.maxSize)
	c.head = nil
	c.tail = nil
}

// Size returns the current cache size.
func (c *decisionCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *decisionCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *decisionCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *decisionCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *decisionCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// computeDecisionKey hashes the full guard input. Params are included as
// JSON because override-rule conditions may depend on them.
func computeDecisionKey(actionType dispatch.ActionType, scopes identity.ScopeSet, topic string, params map[string]any) uint64 {
	h := xxhash.New()

	_, _ = h.WriteString(string(actionType))
	_, _ = h.Write([]byte{0})

	sorted := scopes.Strings()
	sort.Strings(sorted)
	_, _ = h.WriteString(strings.Join(sorted, ","))
	_, _ = h.Write([]byte{0})

	_, _ = h.WriteString(topic)
	_, _ = h.Write([]byte{0})

	if len(params) > 0 {
		paramsJSON, _ := json.Marshal(params)
		_, _ = h.Write(paramsJSON)
	}

	return h.Sum64()
}

// GuardService evaluates action requests: the static permission table
// first, then the configured override rules. Decisions are cached in a
// bounded LRU; the compiled rule set is swapped atomically on reload so
// the hot path is lock-free.
type GuardService struct {
	evaluator *celeval.Evaluator
	snapshot  atomic.Value // stores []compiledOverride
	mu        sync.Mutex   // serializes Reload
	cache     *decisionCache
	logger    *slog.Logger
}

// GuardOption configures a GuardService.
type GuardOption func(*GuardService)

// WithDecisionCacheSize sets the maximum number of cached decisions.
func WithDecisionCacheSize(size int) GuardOption {
	return func(s *GuardService) {
		s.cache = newDecisionCache(size)
	}
}

// NewGuardService creates a guard with the given override rules compiled.
func NewGuardService(rules []OverrideRule, logger *slog.Logger, opts ...GuardOption) (*GuardService, error) {
	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	s := &GuardService{
		evaluator: evaluator,
		cache:     newDecisionCache(1000),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	compiled, err := s.compileRules(rules)
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(compiled)

	logger.Info("guard service initialized",
		"override_rules", len(compiled),
		"table_actions", len(permission.Table()),
	)
	return s, nil
}

// ValidateRules checks that all override conditions are valid CEL.
// Called before persisting configuration.
func (s *GuardService) ValidateRules(rules []OverrideRule) error {
	for _, rule := range rules {
		if rule.Condition == "" {
			continue // empty condition compiles to "true"
		}
		if err := s.evaluator.ValidateExpression(rule.Condition); err != nil {
			return fmt.Errorf("rule %q: %w", rule.Name, err)
		}
	}
	return nil
}

// compileRules compiles the override conditions.
func (s *GuardService) compileRules(rules []OverrideRule) ([]compiledOverride, error) {
	compiled := make([]compiledOverride, 0, len(rules))
	for _, rule := range rules {
		condition := rule.Condition
		if condition == "" {
			condition = "true"
		}
		prg, err := s.evaluator.Compile(condition)
		if err != nil {
			return nil, fmt.Errorf("failed to compile override rule %q: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledOverride{
			name:        rule.Name,
			actionMatch: rule.ActionMatch,
			program:     prg,
			helpText:    rule.HelpText,
		})
	}
	return compiled, nil
}

// loadSnapshot returns the current compiled rules atomically.
func (s *GuardService) loadSnapshot() []compiledOverride {
	return s.snapshot.Load().([]compiledOverride)
}

// Check evaluates one action request. The static table runs first
// (unknown action, role and scope-class matching, navigation guidance);
// override rules can then convert an Allow into a DenyError.
func (s *GuardService) Check(actionType dispatch.ActionType, scopes identity.ScopeSet, topic string, params map[string]any) permission.Decision {
	key := computeDecisionKey(actionType, scopes, topic, params)
	if decision, ok := s.cache.Get(key); ok {
		return decision
	}

	decision := permission.Check(actionType, scopes, topic)
	if decision.Allowed() {
		decision = s.applyOverrides(decision, actionType, scopes, topic, params)
	}

	s.cache.Put(key, decision)
	return decision
}

// applyOverrides runs the compiled override rules against an allowed
// request. The first matching rule denies; rule evaluation errors are
// logged and skipped rather than denying, so one broken rule cannot take
// down every action.
func (s *GuardService) applyOverrides(decision permission.Decision, actionType dispatch.ActionType, scopes identity.ScopeSet, topic string, params map[string]any) permission.Decision {
	for _, rule := range s.loadSnapshot() {
		if rule.actionMatch != "" && rule.actionMatch != "*" {
			matched, err := filepath.Match(rule.actionMatch, string(actionType))
			if err != nil {
				s.logger.Warn("invalid glob pattern in override rule",
					"rule", rule.name, "pattern", rule.actionMatch, "error", err)
				continue
			}
			if !matched {
				continue
			}
		}

		hit, err := s.evaluator.Evaluate(rule.program, celeval.RuleInput{
			Action: string(actionType),
			Params: params,
			Scopes: scopes.Strings(),
			Topic:  topic,
		})
		if err != nil {
			s.logger.Warn("override rule evaluation failed",
				"rule", rule.name, "action", actionType, "error", err)
			continue
		}
		if hit {
			reason := rule.helpText
			if reason == "" {
				reason = fmt.Sprintf("blocked by rule %q", rule.name)
			}
			denied := permission.DenyError(reason)
			denied.RuleName = rule.name
			return denied
		}
	}
	return decision
}

// Reload replaces the override rules and clears the decision cache.
// Safe to call concurrently with Check.
func (s *GuardService) Reload(rules []OverrideRule) error {
	compiled, err := s.compileRules(rules)
	if err != nil {
		return fmt.Errorf("failed to compile override rules: %w", err)
	}

	s.mu.Lock()
	s.snapshot.Store(compiled)
	s.mu.Unlock()

	s.cache.Clear()

	s.logger.Info("guard service reloaded",
		"override_rules", len(compiled),
		"cache_cleared", true,
	)
	return nil
}

// CacheSize returns the current decision cache size, for stats.
func (s *GuardService) CacheSize() int {
	return s.cache.Size()
}
