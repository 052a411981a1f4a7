package termstore

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mcrl2-org/go-aterm/pkg/aterm"
	"github.com/mcrl2-org/go-aterm/pkg/logging"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { devNull.Close() })
	s := New(logging.New(devNull))
	t.Cleanup(s.Shutdown)
	return s
}

func TestSharingHoldsAcrossTwoThreads(t *testing.T) {
	s := newTestStore(t)
	h1 := s.RegisterThread()
	h2 := s.RegisterThread()
	defer s.UnregisterThread(h1)
	defer s.UnregisterThread(h2)

	f := s.Intern(h1, "f", 1)
	a := s.Intern(h2, "a", 0)

	aTerm := s.MakeApplication(h2, a, nil)
	defer aTerm.Drop()

	t1 := s.MakeApplication(h1, f, []*pool.Node{aTerm.Node()})
	defer t1.Drop()
	t2 := s.MakeApplication(h2, f, []*pool.Node{aTerm.Node()})
	defer t2.Drop()

	require.Same(t, t1.Node(), t2.Node(), "f(a) built from two different threads must share the same node")
}

func TestFromTextToTextRoundTrips(t *testing.T) {
	s := newTestStore(t)
	h := s.RegisterThread()
	defer s.UnregisterThread(h)

	term, err := s.FromText(h, "f(a,g(b))")
	require.NoError(t, err)
	defer term.Drop()

	require.Equal(t, "f(a,g(b))", term.String())
}

func TestCollectNowReclaimsUnrootedTerms(t *testing.T) {
	s := newTestStore(t)
	h := s.RegisterThread()
	defer s.UnregisterThread(h)

	garbage, err := s.FromText(h, "junk(1,2,3)")
	require.NoError(t, err)
	garbage.Drop()

	require.NotZero(t, s.Size(), "junk(1,2,3) and its subterms should still be resident before collection")

	stats := s.CollectNow()
	require.NotZero(t, stats.NodesSwept, "the dropped term's nodes should have been swept")
	require.Zero(t, s.Size())
}

func TestCollectNowKeepsRootedTerms(t *testing.T) {
	s := newTestStore(t)
	h := s.RegisterThread()
	defer s.UnregisterThread(h)

	kept, err := s.FromText(h, "kept(1)")
	require.NoError(t, err)
	defer kept.Drop()

	s.CollectNow()
	require.NotZero(t, s.Size(), "a rooted term must survive collection")
}

func TestWriteBinaryReadBinaryRoundTrips(t *testing.T) {
	s := newTestStore(t)
	h := s.RegisterThread()
	defer s.UnregisterThread(h)

	term, err := s.FromText(h, "pair(1,pair(2,empty))")
	require.NoError(t, err)
	defer term.Drop()

	var buf bytes.Buffer
	require.NoError(t, s.WriteBinary(&buf, term.Node()))

	decoded, err := s.ReadBinary(h, &buf)
	require.NoError(t, err)
	defer decoded.Drop()

	require.Equal(t, term.String(), decoded.String())
}

func TestConcurrentReadersDoNotDeadlock(t *testing.T) {
	s := newTestStore(t)
	writer := s.RegisterThread()
	defer s.UnregisterThread(writer)

	seed, err := s.FromText(writer, "shared(1,2)")
	require.NoError(t, err)
	defer seed.Drop()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			h := s.RegisterThread()
			defer s.UnregisterThread(h)
			for j := 0; j < 50; j++ {
				term, err := s.FromText(h, "shared(1,2)")
				if err != nil {
					return err
				}
				term.Drop()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestUnregisterThreadReleasesItsScopedRoots(t *testing.T) {
	s := newTestStore(t)
	h := s.RegisterThread()

	term, err := s.FromText(h, "transient(1)")
	require.NoError(t, err)
	h.Set().PushScoped(term.Node())
	term.Drop()

	s.UnregisterThread(h)
	s.CollectNow()
	require.Zero(t, s.Size(), "the scoped root still held by the only thread that touched the pool must stop pinning it once that thread unregisters")
}

func TestPrintMetricsDoesNotPanic(t *testing.T) {
	s := newTestStore(t)
	h := s.RegisterThread()
	defer s.UnregisterThread(h)

	term, err := s.FromText(h, "m(1)")
	require.NoError(t, err)
	defer term.Drop()

	require.NotPanics(t, s.PrintMetrics)
}

func TestBulkContainerRootsSurviveCollection(t *testing.T) {
	s := newTestStore(t)
	h := s.RegisterThread()
	defer s.UnregisterThread(h)

	container := aterm.NewBulkContainer(h.Set())
	defer container.Close()

	for i := 0; i < 3; i++ {
		term, err := s.FromText(h, "bulk(1)")
		require.NoError(t, err)
		container.Add(term.Node())
		term.Drop()
	}

	s.CollectNow()
	require.NotZero(t, s.Size(), "nodes rooted through a BulkContainer must survive collection")
}
