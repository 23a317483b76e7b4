package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"
)

// Handler performs the side effect for one action type. It may do I/O
// against the persistence layer, and must enforce action-specific
// preconditions not covered by the permission guard — most importantly the
// explicit confirmation flag on destructive actions.
//
// A handler reports failure either by returning an error or by returning a
// Result with Success=false; the store converts both into a failure Result
// and never lets them propagate.
type Handler func(ctx context.Context, env Envelope) (Result, error)

// Clock supplies envelope timestamps in milliseconds.
type Clock func() int64

// handlerEntry pairs a handler with a registration token so unregister
// removes exactly the registration that created it.
type handlerEntry struct {
	id uint64
	fn Handler
}

// Store holds the process-wide dispatch state: the single pending envelope,
// the watermark of the last processed timestamp, the handler registry, and
// the pending/result subscriber lists.
//
// All methods are safe for concurrent use. The watermark check and advance
// happen under the store mutex in a single critical section, so a
// re-entrant or concurrent ExecuteCurrentAction observes the advanced
// watermark and short-circuits as a no-op; handlers run outside the lock.
type Store struct {
	mu sync.Mutex

	clock      Clock
	logger     *slog.Logger
	pending    *Envelope
	watermark  int64
	lastissued int64

	nextID      uint64
	handlers    map[ActionType][]handlerEntry
	pendingSubs map[uint64]func(Envelope)
	resultSubs  map[uint64]func(Result)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the timestamp source. Tests inject a fake clock to drive
// watermark behavior deterministically.
func WithClock(clock Clock) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// WithLogger sets the logger used for registration warnings.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty dispatch store. The default clock is wall time
// in milliseconds; timestamps are forced strictly increasing even when two
// dispatches land in the same millisecond.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		clock:       func() int64 { return time.Now().UnixMilli() },
		logger:      slog.Default(),
		handlers:    make(map[ActionType][]handlerEntry),
		pendingSubs: make(map[uint64]func(Envelope)),
		resultSubs:  make(map[uint64]func(Result)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch stamps a new envelope and sets it as the pending action,
// replacing any previous pending envelope. There is no queue: last dispatch
// wins, and a superseded unexecuted envelope is discarded without a result.
// Pending subscribers are notified synchronously.
func (s *Store) Dispatch(actionType ActionType, params map[string]any) Envelope {
	s.mu.Lock()
	now := s.clock()
	if now <= s.lastissued {
		now = s.lastissued + 1
	}
	s.lastissued = now

	// Clone so later caller mutation of params cannot alter the
	// pending envelope.
	env := Envelope{Type: actionType, Params: maps.Clone(params), Timestamp: now}
	s.pending = &env
	subs := make([]func(Envelope), 0, len(s.pendingSubs))
	for _, fn := range s.pendingSubs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(env)
	}
	return env
}

// RegisterHandler appends a handler for the given action type and returns
// an unregister function that removes exactly that registration, pruning
// the type's entry when it becomes empty. The unregister function is
// idempotent; unregistering a handler that was never registered is a no-op.
//
// Only the FIRST registered handler for a type is invoked on execution.
// Registering a second handler for an already-claimed type is almost always
// a lifecycle bug in the owning component, so it is logged as a warning
// rather than silently shadowed.
func (s *Store) RegisterHandler(actionType ActionType, fn Handler) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if len(s.handlers[actionType]) > 0 {
		s.logger.Warn("duplicate handler registration; first handler wins",
			"action", actionType,
			"registered", len(s.handlers[actionType]),
		)
	}
	s.handlers[actionType] = append(s.handlers[actionType], handlerEntry{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		entries := s.handlers[actionType]
		for i, e := range entries {
			if e.id == id {
				s.handlers[actionType] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
		if len(s.handlers[actionType]) == 0 {
			delete(s.handlers, actionType)
		}
	}
}

// ExecuteCurrentAction is the idempotency gate. It reads the pending
// envelope; when there is none, or its timestamp is at or below the
// watermark, it returns nil without side effects. Otherwise the watermark
// advances to the envelope's timestamp BEFORE the handler is invoked, so a
// concurrent or re-entrant call can never double-execute.
//
// A missing handler and a handler failure are both reported as failure
// Results, never raised; the returned Result is also published to result
// subscribers.
func (s *Store) ExecuteCurrentAction(ctx context.Context) *Result {
	s.mu.Lock()
	env := s.pending
	if env == nil || env.Timestamp <= s.watermark {
		s.mu.Unlock()
		return nil
	}
	s.watermark = env.Timestamp

	var handler Handler
	if entries := s.handlers[env.Type]; len(entries) > 0 {
		handler = entries[0].fn
	}
	s.mu.Unlock()

	var result Result
	if handler == nil {
		result = FailureResult(env.Type, fmt.Sprintf("No handler available for action %q", env.Type))
	} else {
		result = s.invoke(ctx, handler, *env)
	}

	s.publish(result)
	return &result
}

// invoke runs the handler, converting returned errors and panics into
// failure Results. The Action field always echoes the envelope type.
func (s *Store) invoke(ctx context.Context, fn Handler, env Envelope) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = FailureResult(env.Type, fmt.Sprintf("handler panic: %v", r))
		}
	}()

	res, err := fn(ctx, env)
	if err != nil {
		return FailureResult(env.Type, err.Error())
	}
	res.Action = env.Type
	return res
}

// publish delivers a result to all result subscribers synchronously.
func (s *Store) publish(result Result) {
	s.mu.Lock()
	subs := make([]func(Result), 0, len(s.resultSubs))
	for _, fn := range s.resultSubs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(result)
	}
}

// SubscribePending registers a callback invoked synchronously on every
// dispatch, e.g. to open a confirmation dialog before execution.
// The returned function removes the subscription.
func (s *Store) SubscribePending(fn func(Envelope)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.pendingSubs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.pendingSubs, id)
	}
}

// SubscribeResults registers a callback invoked with every published
// Result. The returned function removes the subscription.
func (s *Store) SubscribeResults(fn func(Result)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.resultSubs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.resultSubs, id)
	}
}

// Pending returns a copy of the pending envelope, or nil when idle.
// The copy may already be executed; compare Timestamp against Watermark.
func (s *Store) Pending() *Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	env := *s.pending
	env.Params = maps.Clone(env.Params)
	return &env
}

// Watermark returns the timestamp of the most recently executed or
// explicitly skipped action.
func (s *Store) Watermark() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// RegisteredActions returns the action types that currently have at least
// one handler, sorted for stable output.
func (s *Store) RegisteredActions() []ActionType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActionType, 0, len(s.handlers))
	for t := range s.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reset clears the pending envelope, the watermark, and all handler and
// subscriber registrations. Test/teardown hook only.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.watermark = 0
	s.lastissued = 0
	s.handlers = make(map[ActionType][]handlerEntry)
	s.pendingSubs = make(map[uint64]func(Envelope))
	s.resultSubs = make(map[uint64]func(Result))
}
