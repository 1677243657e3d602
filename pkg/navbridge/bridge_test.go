package navbridge

import (
	"reflect"
	"testing"

	"github.com/vango-dev/querysync/pkg/history"
)

func newHost(t *testing.T, initial string) *history.Memory {
	t.Helper()
	h, err := history.NewMemory(initial)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func funcPointer(p history.Primitive) uintptr {
	return reflect.ValueOf(p).Pointer()
}

type recordingObserver struct {
	notified []Source
	active   []bool
}

func (o *recordingObserver) BridgeNotified(s Source)    { o.notified = append(o.notified, s) }
func (o *recordingObserver) BridgeIntercepting(a bool) { o.active = append(o.active, a) }

func TestAcquireInterceptsBothPrimitives(t *testing.T) {
	h := newHost(t, "/")
	b := New(h)

	calls := 0
	b.Subscribe(func() { calls++ })

	h.PushState(nil, "", "/?a=1")
	if calls != 0 {
		t.Fatal("no notification expected before Acquire")
	}

	b.Acquire()
	h.PushState(nil, "", "/?a=2")
	h.ReplaceState(nil, "", "/?a=3")
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if h.Location().RawQuery != "a=3" || h.Len() != 3 {
		t.Error("original primitive behavior must be preserved")
	}
}

func TestSubscribersSeeCommittedAddress(t *testing.T) {
	h := newHost(t, "/")
	b := New(h)
	b.Acquire()
	defer b.Release()

	var seen string
	b.Subscribe(func() { seen = h.Location().RawQuery })
	h.PushState(nil, "", "/?q=x")
	if seen != "q=x" {
		t.Errorf("subscriber saw %q, want q=x", seen)
	}
}

func TestReleaseRestoresExactly(t *testing.T) {
	h := newHost(t, "/")
	nativePush, nativeReplace := h.Primitives()

	b := New(h)
	b.Acquire()
	b.Acquire()

	wrappedPush, _ := h.Primitives()
	if funcPointer(wrappedPush) == funcPointer(nativePush) {
		t.Fatal("Acquire should install a wrapper")
	}

	b.Release()
	if !b.Active() {
		t.Fatal("one holder remains, interception must stay active")
	}
	if p, _ := h.Primitives(); funcPointer(p) != funcPointer(wrappedPush) {
		t.Error("wrapper must not be reinstalled or removed while held")
	}

	b.Release()
	if b.Active() || b.Count() != 0 {
		t.Fatal("interception should be removed")
	}
	push, replace := h.Primitives()
	if funcPointer(push) != funcPointer(nativePush) || funcPointer(replace) != funcPointer(nativeReplace) {
		t.Error("Release must restore the saved primitives")
	}

	calls := 0
	b.Subscribe(func() { calls++ })
	h.PushState(nil, "", "/?a=1")
	h.Back()
	if calls != 0 {
		t.Errorf("calls = %d after full release, want 0", calls)
	}
}

func TestRestoresThirdPartyPrimitives(t *testing.T) {
	h := newHost(t, "/")

	routerCalls := 0
	nativePush, nativeReplace := h.Native()
	routerPush := func(s any, title, url string) {
		routerCalls++
		nativePush(s, title, url)
	}
	h.SetPrimitives(routerPush, nativeReplace)

	b := New(h)
	b.Acquire()
	h.PushState(nil, "", "/?a=1")
	b.Release()

	if p, _ := h.Primitives(); funcPointer(p) != funcPointer(routerPush) {
		t.Error("Release must restore whatever was installed before Acquire")
	}
	h.PushState(nil, "", "/?a=2")
	if routerCalls != 2 {
		t.Errorf("routerCalls = %d, want 2", routerCalls)
	}
}

func TestReleaseWithoutAcquire(t *testing.T) {
	h := newHost(t, "/")
	b := New(h)
	b.Release()
	if b.Count() != 0 {
		t.Errorf("Count = %d, must never go negative", b.Count())
	}
	b.Acquire()
	if b.Count() != 1 {
		t.Errorf("Count = %d, want 1", b.Count())
	}
}

func TestPopStateForwarded(t *testing.T) {
	h := newHost(t, "/?a=1")
	h.PushState(nil, "", "/?a=2")

	obs := &recordingObserver{}
	b := New(h, WithObserver(obs))
	b.Acquire()

	calls := 0
	b.Subscribe(func() { calls++ })
	h.Back()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	b.Release()
	h.Forward()
	if calls != 1 {
		t.Error("popstate should not be forwarded after release")
	}

	if !reflect.DeepEqual(obs.notified, []Source{SourcePopState}) {
		t.Errorf("notified = %v", obs.notified)
	}
	if !reflect.DeepEqual(obs.active, []bool{true, false}) {
		t.Errorf("active = %v", obs.active)
	}
}

func TestRegistrationOrderAndUnsubscribe(t *testing.T) {
	h := newHost(t, "/")
	b := New(h)
	b.Acquire()

	var order []int
	b.Subscribe(func() { order = append(order, 1) })
	unsub := b.Subscribe(func() { order = append(order, 2) })
	b.Subscribe(func() { order = append(order, 3) })

	h.PushState(nil, "", "/?x=1")
	if !reflect.DeepEqual(order, []int{1, 2, 3}) {
		t.Errorf("order = %v", order)
	}

	unsub()
	unsub()
	order = nil
	h.PushState(nil, "", "/?x=2")
	if !reflect.DeepEqual(order, []int{1, 3}) {
		t.Errorf("order after unsubscribe = %v", order)
	}
	if b.Subscribers() != 2 {
		t.Errorf("Subscribers = %d", b.Subscribers())
	}
}

func TestReentrantCommitIsCoalesced(t *testing.T) {
	h := newHost(t, "/?n=0")
	b := New(h)
	b.Acquire()

	var firstSeen, secondSeen []string
	b.Subscribe(func() {
		firstSeen = append(firstSeen, h.Location().RawQuery)
		if h.Location().RawQuery == "n=1" {
			h.ReplaceState(nil, "", "/?n=2")
		}
	})
	b.Subscribe(func() {
		secondSeen = append(secondSeen, h.Location().RawQuery)
	})

	h.PushState(nil, "", "/?n=1")

	if !reflect.DeepEqual(firstSeen, []string{"n=1", "n=2"}) {
		t.Errorf("firstSeen = %v", firstSeen)
	}
	if !reflect.DeepEqual(secondSeen, []string{"n=2", "n=2"}) {
		t.Errorf("secondSeen = %v", secondSeen)
	}
}

func TestReentrantLoopIsBounded(t *testing.T) {
	h := newHost(t, "/")
	b := New(h, WithMaxPasses(4))
	b.Acquire()

	calls := 0
	b.Subscribe(func() {
		calls++
		h.ReplaceState(nil, "", "/?loop=1")
	})

	h.PushState(nil, "", "/?start=1")
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}

	calls = 0
	h.PushState(nil, "", "/?again=1")
	if calls != 4 {
		t.Errorf("bridge should recover after truncation, calls = %d", calls)
	}
}

func TestNotify(t *testing.T) {
	h := newHost(t, "/")
	b := New(h)
	calls := 0
	b.Subscribe(func() { calls++ })
	b.Notify(SourcePopState)
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestForSharesBridge(t *testing.T) {
	h1 := newHost(t, "/")
	h2 := newHost(t, "/")

	a := For(h1)
	if For(h1) != a {
		t.Error("For should return the same bridge for the same host")
	}
	if For(h2) == a {
		t.Error("different hosts need different bridges")
	}

	a.Acquire()
	if Forget(h1) {
		t.Error("active bridge must not be forgotten")
	}
	a.Release()
	if !Forget(h1) {
		t.Error("idle bridge should be forgotten")
	}
	if For(h1) == a {
		t.Error("For after Forget should create a new bridge")
	}
	Forget(h1)
	Forget(h2)
}

func TestSourceString(t *testing.T) {
	if SourcePush.String() != "push" || SourceReplace.String() != "replace" || SourcePopState.String() != "popstate" {
		t.Error("Source.String mismatch")
	}
	if Source(99).String() != "unknown" {
		t.Error("unknown source")
	}
}
