package aterm

import (
	"math"
	"testing"

	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/protection"
	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

type harness struct {
	l   *lock.BFLock
	tbl *symbol.Table
	p   *pool.Pool
	r   *lock.Reader
	set *protection.Set
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	l := lock.New()
	tbl := symbol.NewTableWithLock(l)
	r := l.NewReader()
	p := pool.New(l, tbl, r)
	return &harness{l: l, tbl: tbl, p: p, r: r, set: protection.NewSet(r)}
}

func TestOwnedTermCloneAndDrop(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	aNode, _ := h.p.Create(h.r, a, nil)

	o1 := NewOwned(h.set, aNode)
	o2 := o1.Clone()

	if !o1.Equal(o2) {
		t.Fatalf("clones of the same node must compare equal")
	}
	if h.set.ScopedDepth() != 0 {
		t.Fatalf("Clone must not touch the scoped stack")
	}

	o1.Drop()
	o2.Drop()
}

func TestDropTwicePanicsInDebugMode(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	aNode, _ := h.p.Create(h.r, a, nil)
	o := NewOwned(h.set, aNode)
	o.Drop()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on double-drop in debug mode")
		}
	}()
	o.Drop()
}

func TestRefDoesNotTouchProtectionSet(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	aNode, _ := h.p.Create(h.r, a, nil)
	o := NewOwned(h.set, aNode)

	ref := o.Ref()
	if ref.Node() != aNode {
		t.Fatalf("Ref() must expose the same node")
	}

	roots := h.set.AppendRoots(nil)
	if len(roots) != 1 {
		t.Fatalf("Ref() must not add a second root, got %d roots", len(roots))
	}
}

func TestBorrowUsedAfterRootDroppedPanicsInDebugMode(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	aNode, _ := h.p.Create(h.r, a, nil)

	o := NewOwned(h.set, aNode)
	ref := o.Ref()
	o.Drop()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic dereferencing a TermRef whose root was dropped")
		}
	}()
	_ = ref.String()
}

func TestBorrowUsedWhileRootStillLiveDoesNotPanic(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	aNode, _ := h.p.Create(h.r, a, nil)

	o := NewOwned(h.set, aNode)
	defer o.Drop()

	ref := o.Ref()
	if got := ref.String(); got != "a" {
		t.Fatalf("String() = %q, want %q", got, "a")
	}
}

func TestRefOfCarriesNoRootAndIsNeverStale(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	aNode, _ := h.p.Create(h.r, a, nil)

	ref := RefOf(aNode)
	if got := ref.String(); got != "a" {
		t.Fatalf("String() = %q, want %q", got, "a")
	}
}

func TestToOwnedUpgradesABorrow(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	aNode, _ := h.p.Create(h.r, a, nil)

	ref := RefOf(aNode)
	owned := ref.ToOwned(h.set)
	defer owned.Drop()

	roots := h.set.AppendRoots(nil)
	if len(roots) != 1 || roots[0] != aNode {
		t.Fatalf("ToOwned must add exactly one root for the underlying node")
	}
}

func TestTransferMovesProtectionSetMembershipOnly(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	aNode, _ := h.p.Create(h.r, a, nil)

	source := protection.NewSet(h.r)
	target := protection.NewSet(h.r)

	o := NewOwned(source, aNode)
	moved := Transfer(o, target)
	defer moved.Drop()

	if len(source.AppendRoots(nil)) != 0 {
		t.Fatalf("source set must have no roots after Transfer")
	}
	if len(target.AppendRoots(nil)) != 1 {
		t.Fatalf("target set must hold the transferred root")
	}
	if moved.Node() != aNode {
		t.Fatalf("Transfer must preserve node identity")
	}
}

func TestBulkContainerAmortizesRooting(t *testing.T) {
	h := newHarness(t)
	f := h.tbl.Intern(h.r, "f", 0)
	fNode, _ := h.p.Create(h.r, f, nil)

	c := NewBulkContainer(h.set)
	defer c.Close()

	for i := 0; i < 1000; i++ {
		c.Add(fNode)
	}

	roots := h.set.AppendRoots(nil)
	if len(roots) != 1000 {
		t.Fatalf("expected the container's callback to contribute 1000 roots, got %d", len(roots))
	}

	c.Close()
	if len(h.set.AppendRoots(nil)) != 0 {
		t.Fatalf("expected no roots after closing the container")
	}
}

func TestFromTextParsesApplicationsAndConstants(t *testing.T) {
	h := newHarness(t)
	term, err := FromText(h.p, h.tbl, h.r, h.set, "f(a,g(b))")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	defer term.Drop()

	if got := term.String(); got != "f(a,g(b))" {
		t.Fatalf("String() = %q, want f(a,g(b))", got)
	}
}

func TestFromTextTolerantOfWhitespace(t *testing.T) {
	h := newHarness(t)
	term, err := FromText(h.p, h.tbl, h.r, h.set, "f(a, g(b))")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	defer term.Drop()

	if got := term.String(); got != "f(a,g(b))" {
		t.Fatalf("String() = %q, want f(a,g(b))", got)
	}
}

func TestFromTextParsesIntsAndLists(t *testing.T) {
	h := newHarness(t)
	term, err := FromText(h.p, h.tbl, h.r, h.set, "[1,2,3]")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	defer term.Drop()

	if got := term.String(); got != "[1,2,3]" {
		t.Fatalf("String() = %q, want [1,2,3]", got)
	}
}

func TestFromTextRoundTripsMaxUint64(t *testing.T) {
	h := newHarness(t)
	const want = "18446744073709551615" // math.MaxUint64
	term, err := FromText(h.p, h.tbl, h.r, h.set, want)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	defer term.Drop()

	if !term.IsInt() || term.AsInt() != math.MaxUint64 {
		t.Fatalf("expected an integer node carrying math.MaxUint64, got %v", term)
	}
	if got := term.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestFromTextRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	if _, err := FromText(h.p, h.tbl, h.r, h.set, "f(a,"); err == nil {
		t.Fatalf("expected a parse error for unbalanced input")
	}
}

func TestFromTextRoundTripsThroughToText(t *testing.T) {
	h := newHarness(t)
	original := "f(a,g(b),[1,2])"
	term, err := FromText(h.p, h.tbl, h.r, h.set, original)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	defer term.Drop()

	reparsed, err := FromText(h.p, h.tbl, h.r, h.set, term.String())
	if err != nil {
		t.Fatalf("unexpected parse error on reparse: %v", err)
	}
	defer reparsed.Drop()

	if !term.Equal(reparsed) {
		t.Fatalf("from_text(to_text(t)) must be pointer-equal to t")
	}
}
