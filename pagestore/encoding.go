package pagestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/simidx/distance"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/node"
)

const (
	pageVersion = 1

	flagLeaf = 1 << 0
)

// ErrCorruptPage is returned when a serialized page cannot be decoded.
var ErrCorruptPage = errors.New("pagestore: corrupt page")

// EncodeNode serializes n into a compact little-endian page.
// The page id is not part of the encoding; it is the storage key.
func EncodeNode(n *node.Node) []byte {
	buf := make([]byte, 0, SizeOf(n))

	var flags byte
	if n.Leaf {
		flags |= flagLeaf
	}
	buf = append(buf, pageVersion, flags)
	buf = binary.AppendUvarint(buf, uint64(n.Level))
	buf = binary.AppendUvarint(buf, uint64(len(n.Entries)))

	for i := range n.Entries {
		e := &n.Entries[i]
		buf = binary.AppendUvarint(buf, uint64(e.Object))
		buf = binary.AppendUvarint(buf, uint64(e.Child))
		buf = appendFloat(buf, e.ParentDistance)
		buf = appendFloat(buf, e.Radius)
		buf = appendVector(buf, e.Routing)
		buf = appendVector(buf, e.Box.Min)
		buf = appendVector(buf, e.Box.Max)
	}
	return buf
}

// DecodeNode parses a page produced by EncodeNode and assigns it id.
func DecodeNode(id node.PageID, data []byte) (*node.Node, error) {
	r := reader{data: data}

	if v := r.byte(); v != pageVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptPage, v)
	}
	flags := r.byte()
	level := r.uvarint()
	count := r.uvarint()
	if r.err != nil {
		return nil, r.err
	}
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("%w: entry count %d", ErrCorruptPage, count)
	}

	n := &node.Node{
		ID:      id,
		Leaf:    flags&flagLeaf != 0,
		Level:   int(level),
		Entries: make([]node.Entry, count, count+1),
	}
	for i := range n.Entries {
		e := &n.Entries[i]
		e.Object = model.ObjectID(r.uvarint())
		e.Child = node.PageID(r.uvarint())
		e.ParentDistance = r.float()
		e.Radius = r.float()
		e.Routing = r.vector()
		e.Box = distance.Rect{Min: r.vector(), Max: r.vector()}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptPage, len(data)-r.off)
	}
	return n, nil
}

// SizeOf estimates the in-memory footprint of n in bytes.
func SizeOf(n *node.Node) int {
	size := 64
	for i := range n.Entries {
		e := &n.Entries[i]
		size += 96 + 8*(len(e.Routing)+len(e.Box.Min)+len(e.Box.Max))
	}
	return size
}

func appendFloat(buf []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
}

func appendVector(buf []byte, v model.Vector) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(v)))
	for _, f := range v {
		buf = appendFloat(buf, f)
	}
	return buf
}

// reader decodes sequential fields and remembers the first error.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) fail(what string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: truncated %s at offset %d", ErrCorruptPage, what, r.off)
	}
}

func (r *reader) byte() byte {
	if r.err != nil || r.off >= len(r.data) {
		r.fail("byte")
		return 0
	}
	b := r.data[r.off]
	r.off++
	return b
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		r.fail("varint")
		return 0
	}
	r.off += n
	return v
}

func (r *reader) float() float64 {
	if r.err != nil || r.off+8 > len(r.data) {
		r.fail("float")
		return 0
	}
	f := math.Float64frombits(binary.LittleEndian.Uint64(r.data[r.off:]))
	r.off += 8
	return f
}

func (r *reader) vector() model.Vector {
	dim := r.uvarint()
	if r.err != nil || dim == 0 {
		return nil
	}
	if dim > uint64(len(r.data)-r.off)/8 {
		r.fail("vector")
		return nil
	}
	v := make(model.Vector, dim)
	for i := range v {
		v[i] = r.float()
	}
	return v
}
