package protection

import (
	"testing"

	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

func testNode(t *testing.T, name string) *pool.Node {
	t.Helper()
	l := lock.New()
	tbl := symbol.NewTableWithLock(l)
	r := l.NewReader()
	p := pool.New(l, tbl, r)
	sym := tbl.Intern(r, name, 0)
	n, _ := p.Create(r, sym, nil)
	return n
}

func TestStrongRootsSurviveUntilRemoved(t *testing.T) {
	l := lock.New()
	s := NewSet(l.NewReader())
	n := testNode(t, "a")

	id := s.AddStrong(n)
	roots := s.AppendRoots(nil)
	if len(roots) != 1 || roots[0] != n {
		t.Fatalf("expected exactly one root, got %v", roots)
	}

	s.RemoveStrong(id)
	if roots := s.AppendRoots(nil); len(roots) != 0 {
		t.Fatalf("expected no roots after removal, got %v", roots)
	}
}

func TestAliveReflectsStrongMembership(t *testing.T) {
	l := lock.New()
	s := NewSet(l.NewReader())
	n := testNode(t, "a")

	id := s.AddStrong(n)
	if !s.Alive(id) {
		t.Fatalf("expected Alive to report true for a freshly added root")
	}

	s.RemoveStrong(id)
	if s.Alive(id) {
		t.Fatalf("expected Alive to report false once the root is removed")
	}
}

func TestAliveNeverReportsATrueIDAsLiveAfterReuse(t *testing.T) {
	l := lock.New()
	s := NewSet(l.NewReader())
	a := testNode(t, "a")
	b := testNode(t, "b")

	id1 := s.AddStrong(a)
	s.RemoveStrong(id1)
	id2 := s.AddStrong(b)

	if id1 == id2 {
		t.Fatalf("HandleIDs must never be reused")
	}
	if s.Alive(id1) {
		t.Fatalf("a dropped id must never read back as alive")
	}
}

func TestScopedStackIsLIFO(t *testing.T) {
	l := lock.New()
	s := NewSet(l.NewReader())
	a := testNode(t, "a")
	b := testNode(t, "b")

	s.PushScoped(a)
	s.PushScoped(b)

	if got := s.PopScoped(); got != b {
		t.Fatalf("expected LIFO pop to return the last-pushed node")
	}
	if got := s.PopScoped(); got != a {
		t.Fatalf("expected LIFO pop to return the first-pushed node last")
	}
	if s.ScopedDepth() != 0 {
		t.Fatalf("expected empty scoped stack")
	}
}

func TestPopScopedOnEmptyStackPanics(t *testing.T) {
	l := lock.New()
	s := NewSet(l.NewReader())

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic when popping an empty scoped stack")
		}
	}()
	s.PopScoped()
}

func TestContainerCallbackContributesRoots(t *testing.T) {
	l := lock.New()
	s := NewSet(l.NewReader())
	a := testNode(t, "a")
	b := testNode(t, "b")

	tok := s.RegisterContainer(func() []*pool.Node { return []*pool.Node{a, b} })

	roots := s.AppendRoots(nil)
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots from the container callback, got %d", len(roots))
	}

	s.UnregisterContainer(tok)
	if roots := s.AppendRoots(nil); len(roots) != 0 {
		t.Fatalf("expected no roots after unregistering the container")
	}
}

func TestRegistryTracksMultipleSets(t *testing.T) {
	l := lock.New()
	reg := NewRegistry()

	s1 := NewSet(l.NewReader())
	s2 := NewSet(l.NewReader())
	reg.Register(s1)
	reg.Register(s2)

	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}

	reg.Unregister(s1)
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after unregistering one set", reg.Len())
	}

	all := reg.All()
	if len(all) != 1 || all[0] != s2 {
		t.Fatalf("expected the remaining set to be s2")
	}
}
