package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protocol-Lattice/campus-agent/src/cache"
	"github.com/Protocol-Lattice/campus-agent/src/mcp"
)

type call struct {
	provider, operation string
	args                map[string]any
	opts                mcp.CallOptions
}

type fakeInvoker struct {
	mu      sync.Mutex
	calls   []call
	respond func(operation string, args map[string]any) (mcp.Payload, error)
}

func (f *fakeInvoker) Invoke(_ context.Context, provider, operation string, args map[string]any, co mcp.CallOptions) (mcp.Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{provider, operation, args, co})
	f.mu.Unlock()
	return f.respond(operation, args)
}

func (f *fakeInvoker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func structured(v any) func(string, map[string]any) (mcp.Payload, error) {
	return func(string, map[string]any) (mcp.Payload, error) { return mcp.Structured(v), nil }
}

func newTestDispatcher(inv Invoker) (*Dispatcher, *cache.MemoryStore) {
	store := cache.NewMemoryStore(64)
	d := New(inv, cache.NewWithStore(store, cache.Options{}), Options{
		Defaults: Defaults{AdmissionYear: 2025, CurrentTerm: "2025-1"},
	})
	return d, store
}

var requirementsPayload = map[string]any{
	"major":         "Computer Science",
	"year":          float64(2024),
	"total":         float64(130),
	"major_credits": float64(66),
	"liberal_arts":  float64(30),
	"requirements": []any{
		map[string]any{"area": "Major core", "credits": float64(36)},
		map[string]any{"area": "Capstone", "required": "6"},
	},
	"remarks": "TOPIK level 4 for international students",
}

func TestDispatchRequirementsFromQuestionHint(t *testing.T) {
	inv := &fakeInvoker{respond: structured(requirementsPayload)}
	d, store := newTestDispatcher(inv)
	session := Session{Question: "2024 admission-year computer-science requirements"}

	res := d.Dispatch(context.Background(), "get_requirements", map[string]any{}, session)
	require.Equal(t, KindData, res.Kind, res.Error)
	require.Equal(t, 1, inv.count())

	got := inv.calls[0]
	assert.Equal(t, "requirements", got.provider)
	assert.Equal(t, "get_graduation_requirements", got.operation)
	assert.Equal(t, map[string]any{"program": "computer-science", "year": 2024}, got.args)
	assert.Equal(t, mcp.CallOptions{Timeout: 30 * time.Second, Retries: 2}, got.opts)

	curriculum, ok := res.Data.(Curriculum)
	require.True(t, ok)
	assert.Equal(t, 130.0, curriculum.TotalCredits)
	assert.Equal(t, 30.0, curriculum.GeneralCredits)
	assert.Equal(t, []CreditCategory{{"Major core", 36}, {"Capstone", 6}}, curriculum.Categories)
	assert.Equal(t, 1, store.Len())
}

func TestDispatchRepeatHitsCache(t *testing.T) {
	inv := &fakeInvoker{respond: structured(requirementsPayload)}
	d, _ := newTestDispatcher(inv)
	session := Session{Question: "2024 admission-year computer-science requirements"}
	ctx := context.Background()

	first := d.Dispatch(ctx, "get_requirements", nil, session)
	second := d.Dispatch(ctx, "get_requirements", map[string]any{"year": "2024", "program": "Computer-Science"}, session)

	assert.Equal(t, 1, inv.count(), "second call must not reach the provider")
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Content(), second.Content())
	assert.Equal(t, first.Data, second.Data)
}

func TestDispatchDenylistNeverWrites(t *testing.T) {
	inv := &fakeInvoker{respond: structured(map[string]any{"name": "Reading Room A", "available": float64(12)})}
	d, store := newTestDispatcher(inv)
	session := Session{UserID: "s1", Credentials: map[string]Credential{"library": {ID: "20240001", Secret: "pw"}}}

	denied := d.Denylist()
	assert.ElementsMatch(t, []string{"get_library_seats", "get_library_loans", "reserve_library_seat"}, denied)

	for _, name := range denied {
		for i := 0; i < 2; i++ {
			res := d.Dispatch(context.Background(), name, map[string]any{"room": "A", "seat": 3}, session)
			assert.True(t, res.OK(), "%s: %s", name, res.Error)
			assert.False(t, res.Cached)
		}
	}
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 2*len(denied), inv.count())
}

func TestDispatchDenylistIgnoresCacheableFlag(t *testing.T) {
	tools := DefaultTools()
	for i := range tools {
		tools[i].Cacheable = true
		tools[i].TTL = time.Hour
	}
	inv := &fakeInvoker{respond: structured(map[string]any{"ok": true})}
	store := cache.NewMemoryStore(64)
	d := New(inv, cache.NewWithStore(store, cache.Options{}), Options{Tools: tools})
	session := Session{UserID: "2020123", Credentials: map[string]Credential{"library": {ID: "2020123", Secret: "hunter2"}}}

	assert.ElementsMatch(t, []string{"get_library_seats", "get_library_loans", "reserve_library_seat"}, d.Denylist())
	for _, name := range d.Denylist() {
		first := d.Dispatch(context.Background(), name, map[string]any{"room": "A", "seat": 12}, session)
		second := d.Dispatch(context.Background(), name, map[string]any{"room": "A", "seat": 12}, session)
		assert.True(t, first.OK(), name)
		assert.False(t, second.Cached, name)
	}
	assert.Equal(t, 6, inv.count(), "every call reaches the provider")
	assert.Equal(t, 0, store.Len())
}

func TestCacheKeysOmitCredentials(t *testing.T) {
	args := map[string]any{"room": "A", "student_id": "2020123", "password": "hunter2"}
	key := cache.Key("reserve_library_seat", keyArgs(args))
	assert.NotContains(t, key, "hunter2")
	assert.NotContains(t, key, "2020123")
	assert.Contains(t, key, `"room":"A"`)
	assert.Len(t, args, 3, "input is not mutated")
}

func TestDispatchCredentialedToolWithoutLogin(t *testing.T) {
	inv := &fakeInvoker{respond: structured(map[string]any{})}
	d, _ := newTestDispatcher(inv)

	res := d.Dispatch(context.Background(), "get_library_loans", nil, Session{})
	assert.Equal(t, KindNeedsLogin, res.Kind)
	assert.JSONEq(t, `{"needs_login":true,"message":"sign in to library to use get_library_loans"}`, res.Content())
	assert.Zero(t, inv.count())
}

func TestDispatchCredentialsPassedThrough(t *testing.T) {
	inv := &fakeInvoker{respond: structured([]any{})}
	d, _ := newTestDispatcher(inv)
	session := Session{Credentials: map[string]Credential{"library": {ID: "20240001", Secret: "pw"}}}

	d.Dispatch(context.Background(), "get_library_loans", map[string]any{"password": "injected"}, session)
	require.Equal(t, 1, inv.count())
	assert.Equal(t, map[string]any{"student_id": "20240001", "password": "pw"}, inv.calls[0].args)
}

func TestDispatchLoginRequiredIsNotCached(t *testing.T) {
	inv := &fakeInvoker{respond: func(string, map[string]any) (mcp.Payload, error) {
		return mcp.Payload{}, &mcp.ToolError{Provider: "courses", Operation: "search_courses", Attempts: 1,
			Err: &mcp.LogicError{Operation: "search_courses", Message: "Login required"}}
	}}
	d, store := newTestDispatcher(inv)

	res := d.Dispatch(context.Background(), "search_courses", map[string]any{"query": "algorithms"}, Session{})
	assert.True(t, res.NeedsLogin)
	assert.Equal(t, 0, store.Len())
}

func TestDispatchProviderFailureBecomesResult(t *testing.T) {
	inv := &fakeInvoker{respond: func(string, map[string]any) (mcp.Payload, error) {
		return mcp.Payload{}, &mcp.ToolError{Provider: "meals", Operation: "get_meals", Attempts: 3, Err: mcp.ErrToolTimeout}
	}}
	d, store := newTestDispatcher(inv)

	res := d.Dispatch(context.Background(), "get_meals", nil, Session{})
	assert.Equal(t, KindError, res.Kind)
	assert.True(t, errors.Is(res.Err, mcp.ErrToolTimeout))
	assert.Contains(t, res.Content(), `"error"`)
	assert.Equal(t, 0, store.Len())
}

func TestDispatchLogicErrorVerbatim(t *testing.T) {
	inv := &fakeInvoker{respond: func(string, map[string]any) (mcp.Payload, error) {
		return mcp.Payload{}, &mcp.ToolError{Err: &mcp.LogicError{Operation: "search_courses", Message: "no such course"}}
	}}
	d, _ := newTestDispatcher(inv)

	res := d.Dispatch(context.Background(), "search_courses", map[string]any{"query": "xyz"}, Session{})
	assert.Equal(t, "no such course", res.Error)
}

func TestDispatchUnsupportedTool(t *testing.T) {
	inv := &fakeInvoker{respond: structured(nil)}
	d, _ := newTestDispatcher(inv)

	res := d.Dispatch(context.Background(), "launch_rocket", nil, Session{})
	assert.Equal(t, KindError, res.Kind)
	assert.ErrorIs(t, res.Err, ErrUnsupportedTool)
	assert.Zero(t, inv.count())
}

func TestDispatchTextPassThrough(t *testing.T) {
	inv := &fakeInvoker{respond: func(string, map[string]any) (mcp.Payload, error) {
		return mcp.Text("The central library is open 09:00-22:00."), nil
	}}
	d, store := newTestDispatcher(inv)

	res := d.Dispatch(context.Background(), "get_library_info", nil, Session{})
	assert.Equal(t, KindText, res.Kind)
	assert.Equal(t, "The central library is open 09:00-22:00.", res.Text)
	assert.Equal(t, 1, store.Len())

	again := d.Dispatch(context.Background(), "get_library_info", nil, Session{})
	assert.True(t, again.Cached)
	assert.Equal(t, res.Text, again.Text)
}

func TestDispatchErrorTextNotCached(t *testing.T) {
	inv := &fakeInvoker{respond: func(string, map[string]any) (mcp.Payload, error) {
		return mcp.Text("Error: upstream portal returned 502"), nil
	}}
	d, store := newTestDispatcher(inv)

	res := d.Dispatch(context.Background(), "get_notices", nil, Session{})
	assert.Equal(t, KindError, res.Kind)
	assert.Equal(t, 0, store.Len())
}

func TestDispatchLoginMarkersOnlyInErrors(t *testing.T) {
	cases := []struct {
		name    string
		payload mcp.Payload
		want    Kind
	}{
		{"notice text", mcp.Text("Unauthorized parking in lot C will be towed from Monday."), KindText},
		{"notice data", mcp.Structured(map[string]any{"notices": []any{map[string]any{"title": "Unauthorized parking"}}}), KindData},
		{"error text", mcp.Text("Error: session expired, please log in again"), KindNeedsLogin},
		{"error field", mcp.Structured(map[string]any{"error": "Unauthorized"}), KindNeedsLogin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := &fakeInvoker{respond: func(string, map[string]any) (mcp.Payload, error) {
				return tc.payload, nil
			}}
			d, _ := newTestDispatcher(inv)

			res := d.Dispatch(context.Background(), "get_notices", nil, Session{})
			assert.Equal(t, tc.want, res.Kind)
			assert.Equal(t, tc.want == KindNeedsLogin, res.NeedsLogin)
		})
	}
}

func TestDispatchWithoutCache(t *testing.T) {
	inv := &fakeInvoker{respond: structured(map[string]any{"meals": []any{}})}
	d := New(inv, nil, Options{})

	d.Dispatch(context.Background(), "get_meals", nil, Session{})
	d.Dispatch(context.Background(), "get_meals", nil, Session{})
	assert.Equal(t, 2, inv.count())
}
