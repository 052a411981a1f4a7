package baf

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

type harness struct {
	l   *lock.BFLock
	tbl *symbol.Table
	p   *pool.Pool
	r   *lock.Reader
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	l := lock.New()
	tbl := symbol.NewTableWithLock(l)
	r := l.NewReader()
	p := pool.New(l, tbl, r)
	return &harness{l: l, tbl: tbl, p: p, r: r}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	f := h.tbl.Intern(h.r, "f", 2)
	aNode, _ := h.p.Create(h.r, a, nil)
	root, _ := h.p.Create(h.r, f, []*pool.Node{aNode, aNode})

	var buf bytes.Buffer
	enc, err := NewEncoder(&buf)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if err := enc.WriteRoot(root); err != nil {
		t.Fatalf("WriteRoot: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dec, err := NewDecoder(&buf, h.p, h.tbl, h.r)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	decoded, err := dec.ReadRoot()
	if err != nil {
		t.Fatalf("ReadRoot: %v", err)
	}

	if decoded != root {
		t.Fatalf("decoded node must be pointer-equal to the original (same pool)")
	}
}

func TestEncodeDecodeIntoFreshPool(t *testing.T) {
	h1 := newHarness(t)
	a := h1.tbl.Intern(h1.r, "a", 0)
	f := h1.tbl.Intern(h1.r, "f", 1)
	aNode, _ := h1.p.Create(h1.r, a, nil)
	root, _ := h1.p.Create(h1.r, f, []*pool.Node{aNode})

	var buf bytes.Buffer
	enc, _ := NewEncoder(&buf)
	if err := enc.WriteRoot(root); err != nil {
		t.Fatalf("WriteRoot: %v", err)
	}
	enc.Close()

	h2 := newHarness(t)
	dec, err := NewDecoder(&buf, h2.p, h2.tbl, h2.r)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	decoded, err := dec.ReadRoot()
	if err != nil {
		t.Fatalf("ReadRoot: %v", err)
	}

	if decoded.String() != root.String() {
		t.Fatalf("decoded term %q does not match original %q", decoded.String(), root.String())
	}
	if decoded.Symbol().Arity() != 1 {
		t.Fatalf("expected arity 1, got %d", decoded.Symbol().Arity())
	}
}

func TestEncodeSharesRepeatedSymbolAndSubterm(t *testing.T) {
	h := newHarness(t)
	a := h.tbl.Intern(h.r, "a", 0)
	f := h.tbl.Intern(h.r, "f", 2)
	aNode, _ := h.p.Create(h.r, a, nil)
	root, _ := h.p.Create(h.r, f, []*pool.Node{aNode, aNode})

	var buf bytes.Buffer
	enc, _ := NewEncoder(&buf)
	enc.WriteRoot(root)
	enc.Close()

	if len(enc.symbols) != 2 {
		t.Fatalf("expected exactly 2 distinct symbols (a, f), got %d", len(enc.symbols))
	}
	if len(enc.nodes) != 2 {
		t.Fatalf("expected exactly 2 distinct nodes (a, f(a,a)) despite a appearing twice as an argument, got %d", len(enc.nodes))
	}
}

func TestEncodeIntNode(t *testing.T) {
	h := newHarness(t)
	root, _ := h.p.CreateInt(h.r, 424242)

	var buf bytes.Buffer
	enc, _ := NewEncoder(&buf)
	enc.WriteRoot(root)
	enc.Close()

	dec, err := NewDecoder(&buf, h.p, h.tbl, h.r)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	decoded, err := dec.ReadRoot()
	if err != nil {
		t.Fatalf("ReadRoot: %v", err)
	}
	if !decoded.IsInt() || decoded.AsInt() != 424242 {
		t.Fatalf("expected the decoded node to carry 424242, got %v", decoded)
	}
}

func TestEncodeIntNodeAtMaxUint64(t *testing.T) {
	h := newHarness(t)
	root, _ := h.p.CreateInt(h.r, math.MaxUint64)

	var buf bytes.Buffer
	enc, _ := NewEncoder(&buf)
	enc.WriteRoot(root)
	enc.Close()

	dec, err := NewDecoder(&buf, h.p, h.tbl, h.r)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	decoded, err := dec.ReadRoot()
	if err != nil {
		t.Fatalf("ReadRoot: %v", err)
	}
	if !decoded.IsInt() || decoded.AsInt() != math.MaxUint64 {
		t.Fatalf("expected the decoded node to carry math.MaxUint64, got %v", decoded)
	}
}

func TestDecoderRejectsBadMagic(t *testing.T) {
	h := newHarness(t)
	bad := strings.Repeat("\x00", 8)
	if _, err := NewDecoder(strings.NewReader(bad), h.p, h.tbl, h.r); err == nil {
		t.Fatalf("expected an error for a stream with the wrong magic")
	}
}
