// Package baf implements the Binary Aterm Format (spec component C7): a
// compact, streamable wire encoding where every shared subterm is written
// exactly once and the decoder rebuilds the same shared graph.
//
// The bit-packing here has no counterpart among the retrieved example
// libraries — none of them touch sub-byte framing — so it is built directly
// on the standard library's bufio and math/bits, the same way the design
// this format is grounded on (merc/crates/aterm/src/aterm_binary_stream.rs)
// builds its own bit writer rather than reaching for a general-purpose one.
package baf

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"

	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

// Magic and Version identify the stream format and its revision, mirroring
// the fixed header a binary stream format carries so a corrupted or foreign
// file is rejected immediately rather than misparsed.
const (
	Magic   uint16 = 0x8baf
	Version uint16 = 0x0001
)

type packetKind uint8

const (
	packetSymbolDef packetKind = iota
	packetNodeDef
	packetIntDef
	packetRoot
)

const packetKindBits = 2

// widthForCount returns the number of bits needed to address any value in
// [0, count), i.e. any index into a sequence that currently holds count
// entries.
func widthForCount(count int) int {
	if count <= 1 {
		return 1
	}
	return bits.Len(uint(count - 1))
}

// bitWriter and bitReader move each value least-significant bit first and
// fill each byte from bit 0 upward, so byte-aligned fields appear
// little-endian on the wire.
type bitWriter struct {
	w     *bufio.Writer
	cur   byte
	nbits uint
	err   error
}

func newBitWriter(w io.Writer) *bitWriter {
	return &bitWriter{w: bufio.NewWriter(w)}
}

func (bw *bitWriter) writeBits(value uint64, n int) {
	if bw.err != nil {
		return
	}
	for i := 0; i < n; i++ {
		bit := byte((value >> uint(i)) & 1)
		bw.cur |= bit << bw.nbits
		bw.nbits++
		if bw.nbits == 8 {
			if err := bw.w.WriteByte(bw.cur); err != nil {
				bw.err = err
				return
			}
			bw.cur = 0
			bw.nbits = 0
		}
	}
}

func (bw *bitWriter) flush() error {
	if bw.err != nil {
		return bw.err
	}
	if bw.nbits > 0 {
		if err := bw.w.WriteByte(bw.cur); err != nil {
			return err
		}
		bw.cur, bw.nbits = 0, 0
	}
	return bw.w.Flush()
}

type bitReader struct {
	r     *bufio.Reader
	cur   byte
	nbits uint
}

func newBitReader(r io.Reader) *bitReader {
	return &bitReader{r: bufio.NewReader(r)}
}

func (br *bitReader) readBits(n int) (uint64, error) {
	var value uint64
	for i := 0; i < n; i++ {
		if br.nbits == 0 {
			b, err := br.r.ReadByte()
			if err != nil {
				return 0, err
			}
			br.cur = b
			br.nbits = 8
		}
		bit := br.cur & 1
		br.cur >>= 1
		br.nbits--
		value |= uint64(bit) << uint(i)
	}
	return value, nil
}

// Encoder writes a term graph to a stream, emitting each shared symbol and
// node exactly once (spec.md §4.7).
type Encoder struct {
	bw *bitWriter

	symbolIndex map[*symbol.Symbol]int
	symbols     []*symbol.Symbol

	nodeIndex map[*pool.Node]int
	nodes     []*pool.Node
}

// NewEncoder writes the stream header and returns an Encoder ready to
// accept WriteRoot calls.
func NewEncoder(w io.Writer) (*Encoder, error) {
	bw := newBitWriter(w)
	bw.writeBits(uint64(Magic), 16)
	bw.writeBits(uint64(Version), 16)
	return &Encoder{
		bw:          bw,
		symbolIndex: make(map[*symbol.Symbol]int),
		nodeIndex:   make(map[*pool.Node]int),
	}, nil
}

func (e *Encoder) encodeSymbol(sym *symbol.Symbol) int {
	if idx, ok := e.symbolIndex[sym]; ok {
		return idx
	}
	e.bw.writeBits(uint64(packetSymbolDef), packetKindBits)
	name := sym.Name()
	e.bw.writeBits(uint64(len(name)), 16)
	for i := 0; i < len(name); i++ {
		e.bw.writeBits(uint64(name[i]), 8)
	}
	e.bw.writeBits(uint64(sym.Arity()), 16)

	idx := len(e.symbols)
	e.symbols = append(e.symbols, sym)
	e.symbolIndex[sym] = idx
	return idx
}

func (e *Encoder) encodeNode(n *pool.Node) int {
	if idx, ok := e.nodeIndex[n]; ok {
		return idx
	}

	if n.IsInt() {
		e.bw.writeBits(uint64(packetIntDef), packetKindBits)
		e.bw.writeBits(n.AsInt(), 64)
		idx := len(e.nodes)
		e.nodes = append(e.nodes, n)
		e.nodeIndex[n] = idx
		return idx
	}

	argIdxs := make([]int, n.Arity())
	for i, a := range n.Args() {
		argIdxs[i] = e.encodeNode(a)
	}

	symIdx := e.encodeSymbol(n.Symbol())

	e.bw.writeBits(uint64(packetNodeDef), packetKindBits)
	e.bw.writeBits(uint64(symIdx), widthForCount(len(e.symbols)))
	argWidth := widthForCount(len(e.nodes))
	for _, ai := range argIdxs {
		e.bw.writeBits(uint64(ai), argWidth)
	}

	idx := len(e.nodes)
	e.nodes = append(e.nodes, n)
	e.nodeIndex[n] = idx
	return idx
}

// WriteRoot encodes root (and, transitively, every subterm it does not
// already share with a previously written root) and appends a Root packet
// naming it. It may be called more than once on the same Encoder; later
// calls reuse every symbol and node already written.
func (e *Encoder) WriteRoot(root *pool.Node) error {
	idx := e.encodeNode(root)
	e.bw.writeBits(uint64(packetRoot), packetKindBits)
	e.bw.writeBits(uint64(idx), widthForCount(len(e.nodes)))
	return e.bw.err
}

// Close flushes any buffered bits. It does not close the underlying writer.
func (e *Encoder) Close() error {
	return e.bw.flush()
}

// Decoder reads a term graph previously written by an Encoder.
type Decoder struct {
	br *bitReader

	pool *pool.Pool
	tbl  *symbol.Table
	r    *lock.Reader

	symbols []*symbol.Symbol
	nodes   []*pool.Node
}

// NewDecoder validates the stream header and returns a Decoder that
// materializes nodes into p (interning symbols via tbl) under reader r.
func NewDecoder(rd io.Reader, p *pool.Pool, tbl *symbol.Table, r *lock.Reader) (*Decoder, error) {
	br := newBitReader(rd)
	magic, err := br.readBits(16)
	if err != nil {
		return nil, fmt.Errorf("baf: reading magic: %w", err)
	}
	if uint16(magic) != Magic {
		return nil, fmt.Errorf("baf: bad magic %#x, want %#x", magic, Magic)
	}
	version, err := br.readBits(16)
	if err != nil {
		return nil, fmt.Errorf("baf: reading version: %w", err)
	}
	if uint16(version) != Version {
		return nil, fmt.Errorf("baf: unsupported version %#x", version)
	}
	return &Decoder{br: br, pool: p, tbl: tbl, r: r}, nil
}

// ReadRoot decodes packets until it reaches the next Root packet and
// returns the node it names.
func (d *Decoder) ReadRoot() (*pool.Node, error) {
	for {
		kindBits, err := d.br.readBits(packetKindBits)
		if err != nil {
			return nil, fmt.Errorf("baf: reading packet kind: %w", err)
		}

		switch packetKind(kindBits) {
		case packetSymbolDef:
			nameLen, err := d.br.readBits(16)
			if err != nil {
				return nil, err
			}
			name := make([]byte, nameLen)
			for i := range name {
				b, err := d.br.readBits(8)
				if err != nil {
					return nil, err
				}
				name[i] = byte(b)
			}
			arity, err := d.br.readBits(16)
			if err != nil {
				return nil, err
			}
			sym := d.tbl.Intern(d.r, string(name), int(arity))
			d.symbols = append(d.symbols, sym)

		case packetIntDef:
			value, err := d.br.readBits(64)
			if err != nil {
				return nil, err
			}
			n, _ := d.pool.CreateInt(d.r, value)
			d.nodes = append(d.nodes, n)

		case packetNodeDef:
			symIdx, err := d.br.readBits(widthForCount(len(d.symbols)))
			if err != nil {
				return nil, err
			}
			if int(symIdx) >= len(d.symbols) {
				return nil, fmt.Errorf("baf: symbol index %d out of range", symIdx)
			}
			sym := d.symbols[symIdx]

			argWidth := widthForCount(len(d.nodes))
			args := make([]*pool.Node, sym.Arity())
			for i := range args {
				argIdx, err := d.br.readBits(argWidth)
				if err != nil {
					return nil, err
				}
				if int(argIdx) >= len(d.nodes) {
					return nil, fmt.Errorf("baf: argument index %d out of range", argIdx)
				}
				args[i] = d.nodes[argIdx]
			}
			n, _ := d.pool.Create(d.r, sym, args)
			d.nodes = append(d.nodes, n)

		case packetRoot:
			rootIdx, err := d.br.readBits(widthForCount(len(d.nodes)))
			if err != nil {
				return nil, err
			}
			if int(rootIdx) >= len(d.nodes) {
				return nil, fmt.Errorf("baf: root index %d out of range", rootIdx)
			}
			return d.nodes[rootIdx], nil

		default:
			return nil, fmt.Errorf("baf: unknown packet kind %d", kindBits)
		}
	}
}
