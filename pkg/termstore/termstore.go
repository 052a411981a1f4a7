// Package termstore is the process-wide facade over every other component:
// it owns the single symbol table, term pool, protection-set registry and
// collector, and exposes the consumer-facing operations spec.md §6 lists
// (pool lifecycle, thread registration, the lock façade, symbol/term
// operations, and root registration) as methods on Store and ThreadHandle.
package termstore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mcrl2-org/go-aterm/pkg/aterm"
	"github.com/mcrl2-org/go-aterm/pkg/baf"
	"github.com/mcrl2-org/go-aterm/pkg/gc"
	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/protection"
	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

// Store is the single process-wide term store instance. Construct one with
// New at process start; every worker thread then calls RegisterThread
// before touching the pool, per spec.md §5.
type Store struct {
	ID        uuid.UUID // identifies this instance in logs when a process runs more than one
	lockSet   *lock.BFLock
	symbols   *symbol.Table
	pool      *pool.Pool
	registry  *protection.Registry
	collector *gc.Collector
	logger    *slog.Logger

	admin *ThreadHandle // internal handle for lifecycle/metrics operations

	collectGroup singleflight.Group // coalesces concurrent CollectNow callers onto one pass

	bgCancel context.CancelFunc
	bgDone   chan struct{}
	mu       sync.Mutex
}

// New performs init(): it builds the lock, symbol table, term pool and
// collector, reads Config from the environment, and returns a ready Store.
// The automatic-collection flag and the mark depth limit are applied from
// cfg; the collector's load threshold keeps its built-in default.
func New(logger *slog.Logger) *Store {
	l := lock.New()
	adminReader := l.NewReader()
	tbl := symbol.NewTableWithLock(l)
	p := pool.New(l, tbl, adminReader)
	reg := protection.NewRegistry()
	coll := gc.New(l, p, reg)

	cfg := LoadConfig()
	coll.SetAutomatic(cfg.AutoGC)
	coll.SetMarkDepthLimit(cfg.MarkDepthLimit)

	adminSet := protection.NewSet(adminReader)
	reg.Register(adminSet)

	s := &Store{
		ID:        uuid.New(),
		lockSet:   l,
		symbols:   tbl,
		pool:      p,
		registry:  reg,
		collector: coll,
		logger:    logger,
		admin:     &ThreadHandle{reader: adminReader, set: adminSet},
	}
	logger.Info("term store initialized", "id", s.ID, "auto_gc", cfg.AutoGC, "mark_depth_limit", cfg.MarkDepthLimit)
	return s
}

// Shutdown stops any background collection goroutine and unregisters the
// internal admin thread. It does not release pool memory; that is the Go
// runtime's job once the Store itself becomes unreachable.
func (s *Store) Shutdown() {
	s.mu.Lock()
	cancel := s.bgCancel
	done := s.bgDone
	s.bgCancel = nil
	s.bgDone = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.registry.Unregister(s.admin.set)
	s.lockSet.Unregister(s.admin.reader)
	s.logger.Info("term store shut down", "id", s.ID)
}

// SetAutomaticGC toggles trigger (b)/(c) of spec.md §4.5.
func (s *Store) SetAutomaticGC(enabled bool) { s.collector.SetAutomatic(enabled) }

// SetMarkDepthLimit overrides the collector's mark-stack bound, letting a
// caller such as cmd/aterm apply a command-line flag on top of whatever
// Config.MarkDepthLimit read from the environment at New.
func (s *Store) SetMarkDepthLimit(limit int) { s.collector.SetMarkDepthLimit(limit) }

// CollectNow runs trigger (a): an explicit, synchronous collection. Callers
// that race to trigger a collection at the same moment — an explicit call
// landing next to the background policy's own tick — share a single pass
// through collectGroup rather than running two full mark/sweep sweeps back
// to back for no additional benefit.
func (s *Store) CollectNow() gc.Stats {
	v, _, _ := s.collectGroup.Do("collect", func() (interface{}, error) {
		sweptBefore := s.collector.Stats().NodesSwept
		stats := s.collector.CollectNow()
		collections.Inc()
		nodesSwept.Add(float64(stats.NodesSwept - sweptBefore))
		collectionDuration.Observe(stats.LastDuration.Seconds())
		s.logger.Debug("collection complete", "marked", stats.NodesMarked, "swept", stats.NodesSwept, "duration", stats.LastDuration)
		return stats, nil
	})
	return v.(gc.Stats)
}

// StartBackgroundPolicy launches trigger (c): a periodic check that runs a
// collection whenever ShouldCollect reports the load factor is exceeded.
// Calling it twice without an intervening Shutdown replaces the previous
// goroutine.
func (s *Store) StartBackgroundPolicy(interval time.Duration) {
	s.mu.Lock()
	if s.bgCancel != nil {
		s.bgCancel()
		<-s.bgDone
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.bgCancel, s.bgDone = cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.collector.ShouldCollect(s.pool.Size(s.admin.reader)) {
					s.CollectNow()
				}
			}
		}
	}()
}

// Size returns the number of nodes in the pool.
func (s *Store) Size() int { return s.pool.Size(s.admin.reader) }

// Capacity returns the pool's advisory capacity metric.
func (s *Store) Capacity() int { return s.pool.Capacity(s.admin.reader) }

// PrintMetrics refreshes the exported Prometheus gauges from current state
// and logs a summary line, implementing spec.md §6's print_metrics().
func (s *Store) PrintMetrics() {
	size := s.Size()
	symCount := s.symbols.Len(s.admin.reader)
	poolSize.Set(float64(size))
	symbolTableSize.Set(float64(symCount))
	stats := s.collector.Stats()
	s.logger.Info("term store metrics",
		"pool_size", size,
		"symbol_count", symCount,
		"collections", stats.Collections,
		"nodes_swept", stats.NodesSwept,
	)
}

// ThreadHandle is what register_thread() returns: a reader on the guarding
// lock plus this thread's protection set. Every pool operation a worker
// goroutine performs takes its ThreadHandle.
type ThreadHandle struct {
	reader *lock.Reader
	set    *protection.Set
}

// Reader exposes the underlying lock reader for advanced consumers. Pool and
// symbol operations acquire and release this reader themselves, so it must
// not be held (for example through LockShared) across a call to them: the
// reader is not re-entrant, and a second acquisition panics in debug builds.
func (h *ThreadHandle) Reader() *lock.Reader { return h.reader }

// Set exposes the underlying protection set, mainly so pkg/aterm's
// BulkContainer and Transfer can be driven directly by callers that already
// hold a ThreadHandle.
func (h *ThreadHandle) Set() *protection.Set { return h.set }

// LockShared and UnlockShared are the lock façade's shared-access half
// (spec.md §6).
func (h *ThreadHandle) LockShared()        { h.reader.Lock() }
func (h *ThreadHandle) UnlockShared() bool { return h.reader.Unlock() }

// RegisterThread performs register_thread(): it allocates a reader and a
// protection set for a new worker goroutine and returns the handle it must
// use for every subsequent pool operation.
func (s *Store) RegisterThread() *ThreadHandle {
	r := s.lockSet.NewReader()
	set := protection.NewSet(r)
	s.registry.Register(set)
	return &ThreadHandle{reader: r, set: set}
}

// UnregisterThread performs unregister_thread(h); required at thread
// teardown per spec.md §5.
func (s *Store) UnregisterThread(h *ThreadHandle) {
	s.registry.Unregister(h.set)
	s.lockSet.Unregister(h.reader)
}

// LockExclusive and UnlockExclusive are the lock façade's writer half,
// exposed for advanced consumers that need exclusive access without
// running a full collection (spec.md §6).
func (s *Store) LockExclusive() *lock.ExclusiveGuard    { return s.lockSet.Lock() }
func (s *Store) UnlockExclusive(g *lock.ExclusiveGuard) { g.Unlock() }

// Intern performs intern(name, arity).
func (s *Store) Intern(h *ThreadHandle, name string, arity int) *symbol.Symbol {
	return s.symbols.Intern(h.reader, name, arity)
}

// MakeApplication performs make_application(symbol, args) -> OwnedTerm.
func (s *Store) MakeApplication(h *ThreadHandle, sym *symbol.Symbol, args []*pool.Node) *aterm.OwnedTerm {
	n, _ := s.pool.Create(h.reader, sym, args)
	return aterm.NewOwned(h.set, n)
}

// MakeInt performs make_int(value) -> OwnedTerm.
func (s *Store) MakeInt(h *ThreadHandle, value uint64) *aterm.OwnedTerm {
	n, _ := s.pool.CreateInt(h.reader, value)
	return aterm.NewOwned(h.set, n)
}

// FromText performs from_text(str) -> OwnedTerm | ParseError.
func (s *Store) FromText(h *ThreadHandle, text string) (*aterm.OwnedTerm, error) {
	return aterm.FromText(s.pool, s.symbols, h.reader, h.set, text)
}

// WriteBinary performs write_binary(stream, root): it streams root (and
// every subterm it does not already share with a previously written root
// on this Encoder) to w.
func (s *Store) WriteBinary(w io.Writer, root *pool.Node) error {
	enc, err := baf.NewEncoder(w)
	if err != nil {
		return err
	}
	if err := enc.WriteRoot(root); err != nil {
		return err
	}
	return enc.Close()
}

// ReadBinary performs read_binary(stream) -> OwnedTerm, rooting the decoded
// term in h's protection set.
func (s *Store) ReadBinary(h *ThreadHandle, r io.Reader) (*aterm.OwnedTerm, error) {
	dec, err := baf.NewDecoder(r, s.pool, s.symbols, h.reader)
	if err != nil {
		return nil, err
	}
	n, err := dec.ReadRoot()
	if err != nil {
		return nil, err
	}
	return aterm.NewOwned(h.set, n), nil
}

// RegisterContainer performs register_mark_callback(mark_fn) -> Token; the
// size_fn half of spec.md §6's signature is folded into Callback's own
// return length, since Go slices already carry their length.
func (h *ThreadHandle) RegisterContainer(cb protection.Callback) protection.ContainerToken {
	return h.set.RegisterContainer(cb)
}

// UnregisterContainer performs unregister(Token).
func (h *ThreadHandle) UnregisterContainer(tok protection.ContainerToken) {
	h.set.UnregisterContainer(tok)
}
