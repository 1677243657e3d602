package history

import (
	"testing"
)

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("Replace"); err != nil || m != ModeReplace {
		t.Errorf("ParseMode(Replace) = %v, %v", m, err)
	}
	if m, err := ParseMode("push"); err != nil || m != ModePush {
		t.Errorf("ParseMode(push) = %v, %v", m, err)
	}
	if _, err := ParseMode("jump"); err == nil {
		t.Error("ParseMode(jump) should fail")
	}
	if ModeReplace.String() != "replace" || ModePush.String() != "push" {
		t.Error("Mode.String mismatch")
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw  string
		want Location
	}{
		{"", Location{Path: "/"}},
		{"/items", Location{Path: "/items"}},
		{"/items?page=2#top", Location{Path: "/items", RawQuery: "page=2", Fragment: "top"}},
		{"?q=1", Location{Path: "/", RawQuery: "q=1"}},
		{"https://example.com/a?b=c#d", Location{Origin: "https://example.com", Path: "/a", RawQuery: "b=c", Fragment: "d"}},
		{"https://example.com?x=1", Location{Origin: "https://example.com", Path: "/", RawQuery: "x=1"}},
		{"/p#frag?notquery", Location{Path: "/p", Fragment: "frag?notquery"}},
		{"/proxy/http://example.com?q=a#frag", Location{Path: "/proxy/http://example.com", RawQuery: "q=a", Fragment: "frag"}},
		{"/r/https://x", Location{Path: "/r/https://x"}},
		{"HTTP+s.1://h.io/p", Location{Origin: "HTTP+s.1://h.io", Path: "/p"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}

	if _, err := ParseLocation("/a\\b"); err == nil {
		t.Error("backslash should be rejected")
	}
}

func TestResolve(t *testing.T) {
	base := Location{Origin: "https://x.io", Path: "/shop/items", RawQuery: "page=1", Fragment: "top"}

	tests := []struct {
		ref  string
		want string
	}{
		{"", "https://x.io/shop/items?page=1#top"},
		{"#bottom", "https://x.io/shop/items?page=1#bottom"},
		{"?page=2", "https://x.io/shop/items?page=2"},
		{"/other", "https://x.io/other"},
		{"cart?x=1", "https://x.io/shop/cart?x=1"},
		{"//cdn.io/a", "https://cdn.io/a"},
		{"http://y.io/z#h", "http://y.io/z#h"},
		{"go/https://y.io", "https://x.io/shop/go/https://y.io"},
		{"1x://y.io", "https://x.io/shop/1x://y.io"},
	}
	for _, tt := range tests {
		got, err := base.Resolve(tt.ref)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.ref, err)
		}
		if got.String() != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got.String(), tt.want)
		}
	}
}

func TestLocationRelative(t *testing.T) {
	l := MustLocation("https://x.io/a?b=1#c")
	if l.Relative() != "/a?b=1#c" {
		t.Errorf("Relative() = %q", l.Relative())
	}
	if got := l.WithQuery("").Relative(); got != "/a#c" {
		t.Errorf("WithQuery(\"\") = %q", got)
	}
}

func TestMemoryPushReplace(t *testing.T) {
	m, err := NewMemory("/list?page=1#h")
	if err != nil {
		t.Fatal(err)
	}

	m.PushState("s1", "", "/list?page=2#h")
	if m.Len() != 2 || m.Index() != 1 {
		t.Fatalf("Len/Index = %d/%d, want 2/1", m.Len(), m.Index())
	}
	if m.State() != "s1" {
		t.Errorf("State() = %v", m.State())
	}

	m.ReplaceState(nil, "", "?page=3")
	if m.Len() != 2 {
		t.Errorf("replace should not grow the stack, Len = %d", m.Len())
	}
	if got := m.Location().RawQuery; got != "page=3" {
		t.Errorf("RawQuery = %q", got)
	}
}

func TestMemoryBackForward(t *testing.T) {
	m, _ := NewMemory("/?a=1")
	m.PushState(nil, "", "/?a=2")
	m.PushState(nil, "", "/?a=3")

	pops := 0
	remove := m.OnPopState(func() { pops++ })

	if !m.Back() || m.Location().RawQuery != "a=2" {
		t.Fatalf("Back() -> %q", m.Location().RawQuery)
	}
	if !m.Go(-1) || m.Location().RawQuery != "a=1" {
		t.Fatalf("Go(-1) -> %q", m.Location().RawQuery)
	}
	if m.Back() {
		t.Error("Back() at start should report false")
	}
	if !m.Forward() || m.Location().RawQuery != "a=2" {
		t.Fatalf("Forward() -> %q", m.Location().RawQuery)
	}
	if pops != 3 {
		t.Errorf("pops = %d, want 3", pops)
	}

	m.PushState(nil, "", "/?a=9")
	if m.Len() != 3 || m.Forward() {
		t.Error("push should drop forward entries")
	}

	remove()
	remove()
	m.Back()
	if pops != 3 {
		t.Errorf("removed listener fired, pops = %d", pops)
	}
}

func TestMemoryPrimitives(t *testing.T) {
	m, _ := NewMemory("/")

	var seen []string
	origPush, origReplace := m.Primitives()
	m.SetPrimitives(
		func(state any, title, url string) {
			seen = append(seen, "push "+url)
			origPush(state, title, url)
		},
		func(state any, title, url string) {
			seen = append(seen, "replace "+url)
			origReplace(state, title, url)
		},
	)

	m.PushState(nil, "", "/?a=1")
	Commit(m, ModeReplace, "/?a=2")
	Commit(m, ModePush, "/?a=3")

	if len(seen) != 3 || seen[0] != "push /?a=1" || seen[1] != "replace /?a=2" || seen[2] != "push /?a=3" {
		t.Errorf("seen = %v", seen)
	}
	if m.Location().RawQuery != "a=3" || m.Len() != 3 {
		t.Errorf("Location = %q, Len = %d", m.Location().RawQuery, m.Len())
	}

	m.SetPrimitives(nil, nil)
	m.PushState(nil, "", "/?a=4")
	if len(seen) != 3 {
		t.Error("nil primitives should restore the native ones")
	}
}

func TestMemoryIgnoresBadAddress(t *testing.T) {
	m, _ := NewMemory("/?a=1")
	m.PushState(nil, "", "/bad\\path")
	if m.Len() != 1 || m.Location().RawQuery != "a=1" {
		t.Error("unresolvable address should be ignored")
	}
}
