package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// newTestStore returns a store with a controllable clock.
func newTestStore(t *testing.T) (*Store, *int64) {
	t.Helper()
	now := int64(1000)
	store := NewStore(WithClock(func() int64 { return now }))
	return store, &now
}

func okHandler(result Result) Handler {
	return func(_ context.Context, _ Envelope) (Result, error) {
		return result, nil
	}
}

func TestDispatchStampsMonotonicTimestamps(t *testing.T) {
	store, _ := newTestStore(t)

	// With a frozen clock, repeated dispatches must still get strictly
	// increasing timestamps.
	first := store.Dispatch(ActionSaveDraft, nil)
	second := store.Dispatch(ActionSaveDraft, nil)
	third := store.Dispatch(ActionSaveDraft, nil)

	if !(first.Timestamp < second.Timestamp && second.Timestamp < third.Timestamp) {
		t.Fatalf("timestamps not strictly increasing: %d, %d, %d",
			first.Timestamp, second.Timestamp, third.Timestamp)
	}
}

func TestExecuteCurrentActionRunsHandlerOnce(t *testing.T) {
	store, _ := newTestStore(t)

	calls := 0
	store.RegisterHandler(ActionPublishArticle, func(_ context.Context, env Envelope) (Result, error) {
		calls++
		return SuccessResult(env.Type, "published", nil), nil
	})

	store.Dispatch(ActionPublishArticle, map[string]any{"article_id": "a1"})

	result := store.ExecuteCurrentAction(context.Background())
	if result == nil || !result.Success {
		t.Fatalf("expected successful result, got %+v", result)
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}

	// Executing again without a new dispatch must be a no-op: the
	// watermark already covers the pending timestamp.
	if result := store.ExecuteCurrentAction(context.Background()); result != nil {
		t.Fatalf("second execute returned %+v, want nil", result)
	}
	if calls != 1 {
		t.Fatalf("handler calls after re-execute = %d, want 1", calls)
	}
}

func TestDispatchSupersedesPending(t *testing.T) {
	store, _ := newTestStore(t)

	var executed []ActionType
	record := func(_ context.Context, env Envelope) (Result, error) {
		executed = append(executed, env.Type)
		return SuccessResult(env.Type, "ok", nil), nil
	}
	store.RegisterHandler(ActionSaveDraft, record)
	store.RegisterHandler(ActionPublishArticle, record)

	// Two dispatches before any execution: only the latest runs.
	store.Dispatch(ActionSaveDraft, nil)
	store.Dispatch(ActionPublishArticle, nil)

	result := store.ExecuteCurrentAction(context.Background())
	if result == nil || result.Action != ActionPublishArticle {
		t.Fatalf("result = %+v, want publish_article", result)
	}
	if len(executed) != 1 || executed[0] != ActionPublishArticle {
		t.Fatalf("executed = %v, want [publish_article]", executed)
	}

	// The superseded save_draft must not run later either.
	if result := store.ExecuteCurrentAction(context.Background()); result != nil {
		t.Fatalf("superseded envelope executed: %+v", result)
	}
}

func TestExecuteWithNoHandlerReturnsFailureResult(t *testing.T) {
	store, _ := newTestStore(t)

	store.Dispatch(ActionSetTonality, nil)
	result := store.ExecuteCurrentAction(context.Background())
	if result == nil {
		t.Fatal("expected a result for missing handler")
	}
	if result.Success {
		t.Fatal("missing handler must produce a failure result")
	}
	if !strings.Contains(result.Error, "set_tonality") {
		t.Fatalf("error %q does not name the action", result.Error)
	}

	// The envelope is consumed even though no handler ran.
	if result := store.ExecuteCurrentAction(context.Background()); result != nil {
		t.Fatalf("envelope not consumed: %+v", result)
	}
}

func TestHandlerErrorBecomesFailureResult(t *testing.T) {
	store, _ := newTestStore(t)
	store.RegisterHandler(ActionPurgeArticle, func(_ context.Context, _ Envelope) (Result, error) {
		return Result{}, errors.New("storage unavailable")
	})

	store.Dispatch(ActionPurgeArticle, nil)
	result := store.ExecuteCurrentAction(context.Background())
	if result == nil || result.Success {
		t.Fatalf("expected failure result, got %+v", result)
	}
	if !strings.Contains(result.Error, "storage unavailable") {
		t.Fatalf("error %q does not carry the handler error", result.Error)
	}
}

func TestHandlerPanicBecomesFailureResult(t *testing.T) {
	store, _ := newTestStore(t)
	store.RegisterHandler(ActionSaveDraft, func(_ context.Context, _ Envelope) (Result, error) {
		panic("boom")
	})

	store.Dispatch(ActionSaveDraft, nil)
	result := store.ExecuteCurrentAction(context.Background())
	if result == nil || result.Success {
		t.Fatalf("expected failure result, got %+v", result)
	}
	if !strings.Contains(result.Error, "boom") {
		t.Fatalf("error %q does not carry the panic value", result.Error)
	}

	// The store must remain usable after a panic.
	store.RegisterHandler(ActionPublishArticle, okHandler(SuccessResult(ActionPublishArticle, "ok", nil)))
	store.Dispatch(ActionPublishArticle, nil)
	if result := store.ExecuteCurrentAction(context.Background()); result == nil || !result.Success {
		t.Fatalf("store unusable after panic: %+v", result)
	}
}

func TestFirstHandlerWins(t *testing.T) {
	store, _ := newTestStore(t)

	store.RegisterHandler(ActionSaveDraft, okHandler(SuccessResult(ActionSaveDraft, "first", nil)))
	store.RegisterHandler(ActionSaveDraft, okHandler(SuccessResult(ActionSaveDraft, "second", nil)))

	store.Dispatch(ActionSaveDraft, nil)
	result := store.ExecuteCurrentAction(context.Background())
	if result == nil || result.Message != "first" {
		t.Fatalf("result = %+v, want message %q", result, "first")
	}
}

func TestUnregisterPromotesNextHandler(t *testing.T) {
	store, _ := newTestStore(t)

	unregisterFirst := store.RegisterHandler(ActionSaveDraft, okHandler(SuccessResult(ActionSaveDraft, "first", nil)))
	store.RegisterHandler(ActionSaveDraft, okHandler(SuccessResult(ActionSaveDraft, "second", nil)))

	unregisterFirst()
	// Unregister is idempotent.
	unregisterFirst()

	store.Dispatch(ActionSaveDraft, nil)
	result := store.ExecuteCurrentAction(context.Background())
	if result == nil || result.Message != "second" {
		t.Fatalf("result = %+v, want message %q", result, "second")
	}
}

func TestUnregisterLastHandlerLeavesNone(t *testing.T) {
	store, _ := newTestStore(t)

	unregister := store.RegisterHandler(ActionSaveDraft, okHandler(SuccessResult(ActionSaveDraft, "only", nil)))
	unregister()

	if actions := store.RegisteredActions(); len(actions) != 0 {
		t.Fatalf("registered actions = %v, want none", actions)
	}

	store.Dispatch(ActionSaveDraft, nil)
	result := store.ExecuteCurrentAction(context.Background())
	if result == nil || result.Success {
		t.Fatalf("expected missing-handler failure, got %+v", result)
	}
}

func TestSubscribers(t *testing.T) {
	store, _ := newTestStore(t)
	store.RegisterHandler(ActionSaveDraft, okHandler(SuccessResult(ActionSaveDraft, "ok", nil)))

	var pending []Envelope
	var results []Result
	unsubPending := store.SubscribePending(func(env Envelope) { pending = append(pending, env) })
	unsubResults := store.SubscribeResults(func(r Result) { results = append(results, r) })

	store.Dispatch(ActionSaveDraft, nil)
	store.ExecuteCurrentAction(context.Background())

	if len(pending) != 1 || pending[0].Type != ActionSaveDraft {
		t.Fatalf("pending notifications = %v", pending)
	}
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("result notifications = %v", results)
	}

	unsubPending()
	unsubResults()
	store.Dispatch(ActionSaveDraft, nil)
	store.ExecuteCurrentAction(context.Background())
	if len(pending) != 1 || len(results) != 1 {
		t.Fatal("subscribers notified after unsubscribe")
	}
}

func TestConcurrentDispatchExecutesAtMostOncePerTimestamp(t *testing.T) {
	store := NewStore()

	var mu sync.Mutex
	seen := make(map[int64]int)
	store.RegisterHandler(ActionSaveDraft, func(_ context.Context, env Envelope) (Result, error) {
		mu.Lock()
		seen[env.Timestamp]++
		mu.Unlock()
		return SuccessResult(env.Type, "ok", nil), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Dispatch(ActionSaveDraft, nil)
			store.ExecuteCurrentAction(context.Background())
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for ts, count := range seen {
		if count > 1 {
			t.Fatalf("timestamp %d executed %d times", ts, count)
		}
	}
}

func TestPendingReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)
	store.Dispatch(ActionSaveDraft, map[string]any{"title": "draft"})

	pending := store.Pending()
	if pending == nil {
		t.Fatal("expected a pending envelope")
	}
	pending.Params["title"] = "mutated"

	again := store.Pending()
	if again.Params["title"] != "draft" {
		t.Fatal("Pending exposed internal state")
	}
}

func TestDispatchClonesParams(t *testing.T) {
	store, _ := newTestStore(t)
	params := map[string]any{"confirmed": false}
	store.Dispatch(ActionPurgeArticle, params)

	params["confirmed"] = true

	pending := store.Pending()
	if pending.Params["confirmed"] != false {
		t.Fatal("caller mutation reached the pending envelope")
	}
}

func TestReset(t *testing.T) {
	store, _ := newTestStore(t)
	store.RegisterHandler(ActionSaveDraft, okHandler(SuccessResult(ActionSaveDraft, "ok", nil)))
	store.Dispatch(ActionSaveDraft, nil)

	store.Reset()

	if store.Pending() != nil {
		t.Fatal("pending survived reset")
	}
	if actions := store.RegisteredActions(); len(actions) != 0 {
		t.Fatalf("handlers survived reset: %v", actions)
	}
}
