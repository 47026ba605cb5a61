package stalecache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/krisalay/stalecache"
	"github.com/krisalay/stalecache/clock"
	"github.com/krisalay/stalecache/engine"
	"github.com/krisalay/stalecache/refresh"
	"github.com/krisalay/stalecache/session"
	"github.com/krisalay/stalecache/types"
	"go.uber.org/atomic"
)

//
// ================= TEST REMOTE HANDLE =================
//

type countingHandle struct {
	name       string
	status     atomic.Int32
	err        error
	delay      time.Duration
	propCalls  atomic.Int64
	assocCalls atomic.Int64
}

func newHandle(name string) *countingHandle {
	return &countingHandle{name: name}
}

func (h *countingHandle) UpdatePropertyCache(context.Context, time.Duration) (types.Status, error) {
	h.propCalls.Inc()
	time.Sleep(h.delay)
	return types.Status(h.status.Load()), h.err
}

func (h *countingHandle) UpdateAssociationCache(context.Context, time.Duration) (types.Status, error) {
	h.assocCalls.Inc()
	time.Sleep(h.delay)
	return types.Status(h.status.Load()), h.err
}

func (h *countingHandle) remove() {
	h.status.Store(int32(types.StatusDeleted))
}

//
// ================= HELPER: ENGINE WITH FAKE CLOCK =================
//

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine() (*engine.Engine, *clock.FakeClock, *session.Session, *types.CountingMetrics) {
	c := clock.Fake(start)
	s := session.New("hv-test", c)
	m := &types.CountingMetrics{}
	return engine.ForSession(s, types.DefaultFreshnessThreshold, c, m, nil), c, s, m
}

//
// ================= FRESHNESS =================
//

func TestNonePolicyNeverRefreshes(t *testing.T) {
	e, c, _, _ := newTestEngine()
	calls := 0
	u := stalecache.NewSeededValueUpdater(e, "v1", func() (string, bool) {
		calls++
		return "v2", true
	})

	for i := 0; i < 5; i++ {
		c.Advance(time.Minute)
		v, err := u.Get(context.Background(), types.None)
		if err != nil || v != "v1" {
			t.Fatalf("Get(None) = %q, %v", v, err)
		}
	}
	if calls != 0 {
		t.Fatalf("compute called %d times under None", calls)
	}
}

func TestEnsureWithinThresholdDoesNotRefresh(t *testing.T) {
	e, c, _, _ := newTestEngine()
	h := newHandle("port")
	u := stalecache.NewHandleUpdater(e, h)

	c.Advance(4 * time.Second)
	if _, err := u.Get(context.Background(), types.EnsureUpdated); err != nil {
		t.Fatal(err)
	}
	if n := h.propCalls.Load(); n != 0 {
		t.Fatalf("handle refreshed %d times inside the threshold", n)
	}
}

func TestEnsurePastThresholdRefreshesOnce(t *testing.T) {
	e, c, _, m := newTestEngine()
	h := newHandle("port")
	u := stalecache.NewHandleUpdater(e, h)

	c.Advance(6 * time.Second)
	for i := 0; i < 3; i++ {
		got, err := u.Get(context.Background(), types.EnsureUpdated)
		if err != nil || got != h {
			t.Fatalf("Get = %v, %v", got, err)
		}
	}

	if n := h.propCalls.Load(); n != 1 {
		t.Fatalf("handle refreshed %d times, want 1", n)
	}
	if !u.LastRefresh().Equal(start.Add(6 * time.Second)) {
		t.Fatalf("LastRefresh = %v", u.LastRefresh())
	}
	if m.Refreshes.Load() != 1 {
		t.Fatalf("metrics refreshes = %d", m.Refreshes.Load())
	}
}

func TestAssociatorPolicyUsesAssociationCache(t *testing.T) {
	e, c, _, _ := newTestEngine()
	h := newHandle("switch")
	u := stalecache.NewHandleUpdater(e, h)

	c.Advance(6 * time.Second)
	if _, err := u.Get(context.Background(), types.EnsureAssociatorsUpdated); err != nil {
		t.Fatal(err)
	}
	if h.assocCalls.Load() != 1 || h.propCalls.Load() != 0 {
		t.Fatalf("assoc=%d prop=%d", h.assocCalls.Load(), h.propCalls.Load())
	}
}

func TestEmptyValueUpdaterLoadsOnFirstAccess(t *testing.T) {
	e, _, _, _ := newTestEngine()
	calls := 0
	u := stalecache.NewValueUpdater(e, func() (int, bool) {
		calls++
		return 42, true
	})

	if v, _ := u.Get(context.Background(), types.None); v != 0 {
		t.Fatalf("empty updater returned %d under None", v)
	}

	v, err := u.Get(context.Background(), types.EnsureUpdated)
	if err != nil || v != 42 || calls != 1 {
		t.Fatalf("Get = %d, %v after %d calls", v, err, calls)
	}
}

func TestFlushWatermarkForcesRefresh(t *testing.T) {
	e, c, s, _ := newTestEngine()
	h := newHandle("vm")
	u := stalecache.NewHandleUpdater(e, h)

	c.Advance(time.Millisecond)
	s.FlushCache()

	if _, err := u.Get(context.Background(), types.EnsureUpdated); err != nil {
		t.Fatal(err)
	}
	if _, err := u.Get(context.Background(), types.EnsureUpdated); err != nil {
		t.Fatal(err)
	}
	if n := h.propCalls.Load(); n != 1 {
		t.Fatalf("handle refreshed %d times after one flush, want 1", n)
	}
}

//
// ================= DELETION =================
//

func TestHandleDeletionIsStickyAndFiresOnce(t *testing.T) {
	e, c, _, m := newTestEngine()
	h := newHandle("disk")
	u := stalecache.NewHandleUpdater(e, h)

	fired := 0
	u.OnDeleted(func() { fired++ })

	h.remove()
	c.Advance(6 * time.Second)

	got, err := u.Get(context.Background(), types.EnsureUpdated)
	if err != nil {
		t.Fatalf("deletion surfaced as error: %v", err)
	}
	if got != h {
		t.Fatal("deleted updater did not keep its last value")
	}
	if !u.IsDeleted() {
		t.Fatal("IsDeleted() = false")
	}

	frozen := u.LastRefresh()
	for i := 0; i < 5; i++ {
		c.Advance(time.Minute)
		if _, err := u.Get(context.Background(), types.EnsureUpdated); err != nil {
			t.Fatal(err)
		}
		if v, _ := u.Get(context.Background(), types.None); v != h {
			t.Fatal("value changed after deletion")
		}
	}

	if fired != 1 {
		t.Fatalf("deletion listener fired %d times", fired)
	}
	if m.Deletes.Load() != 1 {
		t.Fatalf("metrics deletes = %d", m.Deletes.Load())
	}
	if n := h.propCalls.Load(); n != 1 {
		t.Fatalf("deleted handle refreshed %d times, want 1", n)
	}
	if !u.LastRefresh().Equal(frozen) {
		t.Fatal("LastRefresh moved after deletion")
	}

	select {
	case <-u.Deleted():
	default:
		t.Fatal("Deleted() channel not closed")
	}
}

func TestOnDeletedAfterDeletionRunsImmediately(t *testing.T) {
	e, _, _, _ := newTestEngine()
	u := stalecache.NewValueUpdater(e, func() (string, bool) { return "", false })

	if _, err := u.Get(context.Background(), types.EnsureUpdated); err != nil {
		t.Fatal(err)
	}

	ran := false
	u.OnDeleted(func() { ran = true })
	if !ran {
		t.Fatal("late listener did not run")
	}
}

func TestValueAbsenceKeepsLastSnapshot(t *testing.T) {
	e, c, _, _ := newTestEngine()
	present := true
	u := stalecache.NewValueUpdater(e, func() (string, bool) {
		if present {
			return "snapshot", true
		}
		return "", false
	})

	if _, err := u.Get(context.Background(), types.EnsureUpdated); err != nil {
		t.Fatal(err)
	}

	present = false
	c.Advance(6 * time.Second)
	v, err := u.Get(context.Background(), types.EnsureUpdated)
	if err != nil || v != "snapshot" || !u.IsDeleted() {
		t.Fatalf("Get = %q, %v, deleted=%v", v, err, u.IsDeleted())
	}
}

func TestCollectionUpdaterEmptyModes(t *testing.T) {
	e, _, _, _ := newTestEngine()

	legacy := stalecache.NewCollectionUpdater(e, func() []string { return []string{} }, refresh.EmptyIsDeleted)
	if _, err := legacy.Get(context.Background(), types.EnsureUpdated); err != nil {
		t.Fatal(err)
	}
	if !legacy.IsDeleted() {
		t.Fatal("EmptyIsDeleted: empty collection did not mark deleted")
	}

	plain := stalecache.NewCollectionUpdater(e, func() []string { return []string{} }, refresh.EmptyIsValue)
	v, err := plain.Get(context.Background(), types.EnsureUpdated)
	if err != nil || v == nil || plain.IsDeleted() {
		t.Fatalf("EmptyIsValue: Get = %v, %v, deleted=%v", v, err, plain.IsDeleted())
	}
}

//
// ================= RECOVERY =================
//

func TestRecoverySuccess(t *testing.T) {
	e, c, _, m := newTestEngine()
	old := newHandle("peer-a")
	repl := newHandle("peer-b")

	u := stalecache.NewRecoveringHandleUpdater(e, old, func(context.Context, time.Duration) (*countingHandle, error) {
		return repl, nil
	})

	old.remove()
	c.Advance(6 * time.Second)

	got, err := u.Get(context.Background(), types.EnsureUpdated)
	if err != nil {
		t.Fatal(err)
	}
	if got != repl {
		t.Fatalf("Get returned %s, want replacement", got.name)
	}
	if u.IsDeleted() {
		t.Fatal("recovered updater marked deleted")
	}
	if repl.propCalls.Load() != 1 {
		t.Fatalf("replacement refreshed %d times", repl.propCalls.Load())
	}
	if m.Recovers.Load() != 1 {
		t.Fatalf("metrics recovers = %d", m.Recovers.Load())
	}
}

func TestRecoveryExhaustedAfterDeletion(t *testing.T) {
	e, c, _, _ := newTestEngine()
	old := newHandle("peer-a")
	u := stalecache.NewRecoveringHandleUpdater(e, old, func(context.Context, time.Duration) (*countingHandle, error) {
		return nil, nil
	})

	old.remove()
	c.Advance(6 * time.Second)

	got, err := u.Get(context.Background(), types.EnsureUpdated)
	var deleted *types.DeletedError
	if !errors.As(err, &deleted) || !errors.Is(err, types.ErrRemoteObjectDeleted) {
		t.Fatalf("err = %v, want DeletedError", err)
	}
	if got != nil {
		t.Fatal("error path returned a handle")
	}
	if u.IsDeleted() {
		t.Fatal("severed association marked the updater deleted")
	}
	if v, _ := u.Get(context.Background(), types.None); v != nil {
		t.Fatalf("dead handle %s still cached", v.name)
	}
}

func TestRecoveryResumesAfterSeveredAssociation(t *testing.T) {
	e, c, _, m := newTestEngine()
	old := newHandle("peer-a")
	var replacement *countingHandle
	lookups := 0
	u := stalecache.NewRecoveringHandleUpdater(e, old, func(context.Context, time.Duration) (*countingHandle, error) {
		lookups++
		return replacement, nil
	})
	ctx := context.Background()

	old.remove()
	c.Advance(6 * time.Second)
	if _, err := u.Get(ctx, types.EnsureUpdated); !errors.Is(err, types.ErrRemoteObjectDeleted) {
		t.Fatalf("first Get err = %v", err)
	}

	// The next ensure access looks again and settles on "no replacement".
	got, err := u.Get(ctx, types.EnsureUpdated)
	if err != nil || got != nil {
		t.Fatalf("second Get = %v, %v", got, err)
	}
	if lookups != 2 {
		t.Fatalf("lookups = %d, want 2", lookups)
	}
	if old.propCalls.Load() != 1 {
		t.Fatalf("dead handle refreshed %d times", old.propCalls.Load())
	}

	replacement = newHandle("peer-b")
	c.Advance(6 * time.Second)

	got, err = u.Get(ctx, types.EnsureUpdated)
	if err != nil || got != replacement {
		t.Fatalf("Get after reconnect = %v, %v", got, err)
	}
	if u.IsDeleted() {
		t.Fatal("recovered updater marked deleted")
	}
	if m.Recovers.Load() != 1 || m.Deletes.Load() != 0 {
		t.Fatalf("recovers = %d, deletes = %d", m.Recovers.Load(), m.Deletes.Load())
	}
}

func TestRecoveryExhaustedWithoutDeletion(t *testing.T) {
	e, _, _, _ := newTestEngine()
	lookups := 0
	u := stalecache.NewRecoveringHandleUpdater[*countingHandle](e, nil, func(context.Context, time.Duration) (*countingHandle, error) {
		lookups++
		return nil, nil
	})

	got, err := u.Get(context.Background(), types.EnsureUpdated)
	if err != nil || got != nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if u.IsDeleted() {
		t.Fatal("nil handle without replacement marked deleted")
	}
	if lookups != 1 {
		t.Fatalf("lookup called %d times", lookups)
	}
}

func TestRecoveryFromNilHandle(t *testing.T) {
	e, _, _, _ := newTestEngine()
	repl := newHandle("peer-b")
	u := stalecache.NewRecoveringHandleUpdater[*countingHandle](e, nil, func(context.Context, time.Duration) (*countingHandle, error) {
		return repl, nil
	})

	got, err := u.Get(context.Background(), types.EnsureUpdated)
	if err != nil || got != repl {
		t.Fatalf("Get = %v, %v", got, err)
	}
}

//
// ================= ERRORS =================
//

func TestInvalidPolicy(t *testing.T) {
	e, _, _, _ := newTestEngine()
	u := stalecache.NewHandleUpdater(e, newHandle("vm"))

	_, err := u.Get(context.Background(), types.UpdatePolicy(99))
	var invalid *types.InvalidPolicyError
	if !errors.As(err, &invalid) || invalid.Policy != 99 {
		t.Fatalf("err = %v, want InvalidPolicyError(99)", err)
	}
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatal("InvalidPolicyError does not match ErrInvalidArgument")
	}
}

func TestAssociatorsUnsupportedOnValues(t *testing.T) {
	e, _, _, _ := newTestEngine()
	u := stalecache.NewValueUpdater(e, func() (int, bool) { return 1, true })

	_, err := u.Get(context.Background(), types.EnsureAssociatorsUpdated)
	if !errors.Is(err, types.ErrUnsupportedOperation) {
		t.Fatalf("err = %v, want ErrUnsupportedOperation", err)
	}
}

func TestTransportErrorLeavesStateUntouched(t *testing.T) {
	e, c, _, _ := newTestEngine()
	boom := errors.New("rpc timeout")
	h := newHandle("vm")
	h.err = boom
	u := stalecache.NewHandleUpdater(e, h)
	before := u.LastRefresh()

	c.Advance(6 * time.Second)
	if _, err := u.Get(context.Background(), types.EnsureUpdated); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !u.LastRefresh().Equal(before) || u.IsDeleted() {
		t.Fatal("failed refresh changed the entry")
	}

	// no retry inside the call; the next call tries again
	h.err = nil
	if _, err := u.Get(context.Background(), types.EnsureUpdated); err != nil {
		t.Fatal(err)
	}
	if n := h.propCalls.Load(); n != 2 {
		t.Fatalf("handle called %d times, want 2", n)
	}
}

func TestPanicInComputePropagates(t *testing.T) {
	e, _, _, _ := newTestEngine()
	u := stalecache.NewValueUpdater(e, func() (int, bool) { panic("boom") })

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		_, _ = u.Get(context.Background(), types.EnsureUpdated)
	}()

	// the lock was released
	if u.IsDeleted() {
		t.Fatal("panic marked the updater deleted")
	}
}

//
// ================= TEMPLATES =================
//

func TestTemplateNeverRefreshes(t *testing.T) {
	e, c, s, _ := newTestEngine()
	h := newHandle("template-port")
	u := stalecache.NewTemplateUpdater(e, h)

	c.Advance(time.Hour)
	s.FlushCache()

	for _, p := range []types.UpdatePolicy{types.None, types.EnsureUpdated, types.EnsureAssociatorsUpdated} {
		got, err := u.Get(context.Background(), p)
		if err != nil || got != h {
			t.Fatalf("Get(%s) = %v, %v", p, got, err)
		}
	}
	if !u.IsTemplate() {
		t.Fatal("IsTemplate() = false")
	}
	if h.propCalls.Load()+h.assocCalls.Load() != 0 {
		t.Fatal("template handle was refreshed")
	}
}

//
// ================= CONCURRENCY =================
//

func TestConcurrentEnsureRefreshesOnce(t *testing.T) {
	e, c, _, _ := newTestEngine()
	h := newHandle("vm")
	h.delay = 20 * time.Millisecond
	u := stalecache.NewHandleUpdater(e, h)

	c.Advance(6 * time.Second)

	const n = 32
	var wg sync.WaitGroup
	results := make([]*countingHandle, n)
	gate := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-gate
			v, err := u.Get(context.Background(), types.EnsureUpdated)
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			results[i] = v
		}(i)
	}
	close(gate)
	wg.Wait()

	if calls := h.propCalls.Load(); calls != 1 {
		t.Fatalf("%d concurrent callers caused %d refreshes", n, calls)
	}
	for i, v := range results {
		if v != h {
			t.Fatalf("caller %d got %v", i, v)
		}
	}
}

func TestConcurrentEnsureSharesOneComputedValue(t *testing.T) {
	e, _, _, _ := newTestEngine()
	var computed atomic.Int64
	u := stalecache.NewValueUpdater(e, func() (int64, bool) {
		time.Sleep(20 * time.Millisecond)
		return computed.Inc(), true
	})

	const n = 32
	var wg sync.WaitGroup
	results := make([]int64, n)
	gate := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-gate
			v, err := u.Get(context.Background(), types.EnsureUpdated)
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			results[i] = v
		}(i)
	}
	close(gate)
	wg.Wait()

	if computed.Load() != 1 {
		t.Fatalf("%d concurrent callers computed %d times", n, computed.Load())
	}
	for i, v := range results {
		if v != 1 {
			t.Fatalf("caller %d got %d, want 1", i, v)
		}
	}
}

func TestDistinctUpdatersRefreshIndependently(t *testing.T) {
	e, c, _, _ := newTestEngine()
	handles := make([]*countingHandle, 8)
	updaters := make([]*stalecache.Updater[*countingHandle], 8)
	for i := range handles {
		handles[i] = newHandle("dev")
		handles[i].delay = 10 * time.Millisecond
		updaters[i] = stalecache.NewHandleUpdater(e, handles[i])
	}

	c.Advance(6 * time.Second)

	var wg sync.WaitGroup
	for _, u := range updaters {
		wg.Add(1)
		go func(u *stalecache.Updater[*countingHandle]) {
			defer wg.Done()
			if _, err := u.Get(context.Background(), types.EnsureUpdated); err != nil {
				t.Errorf("Get: %v", err)
			}
		}(u)
	}
	wg.Wait()

	for i, h := range handles {
		if h.propCalls.Load() != 1 {
			t.Fatalf("handle %d refreshed %d times", i, h.propCalls.Load())
		}
	}
}
