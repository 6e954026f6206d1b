package shmring

import "sync/atomic"

// Ring is a single-producer, single-consumer byte ring.
// The producer may run in interrupt or task context; it never blocks.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	readable chan struct{} // 0 -> >0 available edge
	writable chan struct{} // 0 -> >0 space edge
}

// New allocates a ring. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

func (r *Ring) Cap() int { return len(r.buf) }

func (r *Ring) Space() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(r.size() - (wr - rd))
}

func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// TryWriteFrom copies as much of src as fits and returns the count.
func (r *Ring) TryWriteFrom(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	before := wr - rd
	n := int(r.size() - before)
	if n <= 0 {
		return 0
	}
	if len(src) < n {
		n = len(src)
	}
	r.put(wr, src[:n])
	r.wr.Store(wr + uint32(n)) // release
	if before == 0 {
		notify(r.readable)
	}
	return n
}

// WriteRecord copies all of src or nothing. Used for framed lines so a
// reader never sees half a record.
func (r *Ring) WriteRecord(src []byte) bool {
	if len(src) == 0 {
		return true
	}
	if len(src) > r.Space() {
		return false
	}
	return r.TryWriteFrom(src) == len(src)
}

func (r *Ring) put(wr uint32, src []byte) {
	idx := wr & r.mask
	first := int(r.size() - idx)
	if first > len(src) {
		first = len(src)
	}
	copy(r.buf[idx:idx+uint32(first)], src[:first])
	if rest := len(src) - first; rest > 0 {
		copy(r.buf[:rest], src[first:])
	}
}

// TryReadInto copies up to len(dst) available bytes and returns the count.
func (r *Ring) TryReadInto(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	n := int(wr - rd)
	if n <= 0 {
		return 0
	}
	if len(dst) < n {
		n = len(dst)
	}
	idx := rd & r.mask
	first := int(r.size() - idx)
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[idx:idx+uint32(first)])
	if rest := n - first; rest > 0 {
		copy(dst[first:n], r.buf[:rest])
	}
	r.rd.Store(rd + uint32(n)) // release

	if wr-rd == r.size() {
		notify(r.writable)
	}
	return n
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (r *Ring) Watermarks() (rd, wr uint32) {
	return r.rd.Load(), r.wr.Load()
}

func (r *Ring) Readable() <-chan struct{} { return r.readable }
func (r *Ring) Writable() <-chan struct{} { return r.writable }
