// Package ring implements a fixed-capacity, single-producer single-consumer
// byte ring carrying length-prefixed frames.
//
// A frame is a 4-byte little-endian length followed by that many payload
// bytes. The producer lays down the header and payload first and publishes
// the write cursor with a single atomic store afterwards, so the consumer
// only ever sees whole frames. Enqueue and Dequeue never block, never take a
// lock and never allocate, which makes them safe to call from an audio
// callback.
//
// Exactly one goroutine may produce and exactly one may consume at a time.
package ring

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"sync/atomic"
)

const (
	// HeaderSize is the size of the frame length prefix in bytes.
	HeaderSize = 4

	// MinCapacity is the smallest ring that can be created.
	MinCapacity = 16

	// MaxCapacity keeps every frame length representable in the header.
	MaxCapacity = 1 << 30

	// cacheLine separates the cursors so producer and consumer do not share a line.
	cacheLine = 64
)

// Ring is a lock-free SPSC framed byte ring.
//
// The cursors are monotonic byte counters masked with capacity-1 on access,
// so write-read is always the number of committed bytes and the full
// capacity is usable.
type Ring struct {
	buf  []byte
	mask uint64
	size uint64

	_     [cacheLine]byte
	write atomic.Uint64 // written by the producer only
	_     [cacheLine - 8]byte
	read  atomic.Uint64 // written by the consumer only
	_     [cacheLine - 8]byte
}

// New returns a ring whose capacity is the requested size rounded up to the
// next power of two.
func New(capacity int) (*Ring, error) {
	if capacity < MinCapacity || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidCapacity, capacity, MinCapacity, MaxCapacity)
	}

	size := uint64(1) << bits.Len64(uint64(capacity)-1)

	return &Ring{
		buf:  make([]byte, size),
		mask: size - 1,
		size: size,
	}, nil
}

// Capacity returns the size of the backing buffer in bytes.
func (r *Ring) Capacity() int {
	return int(r.size)
}

// MaxPayload returns the largest payload a single frame can carry.
func (r *Ring) MaxPayload() int {
	return int(r.size) - HeaderSize
}

// WriteSpace returns the number of free bytes as seen by the producer.
func (r *Ring) WriteSpace() int {
	return int(r.size - (r.write.Load() - r.read.Load()))
}

// ReadSpace returns the number of committed bytes as seen by the consumer.
func (r *Ring) ReadSpace() int {
	return int(r.write.Load() - r.read.Load())
}

// Len is an alias for ReadSpace. Frames are not counted.
func (r *Ring) Len() int {
	return r.ReadSpace()
}

// Enqueue copies payload into the ring as one frame. It returns ErrNoSpace,
// leaving the ring untouched, if header and payload do not fit, and
// ErrFrameTooLarge if they could never fit. Producer side only.
func (r *Ring) Enqueue(payload []byte) error {
	n := uint64(len(payload))
	if n > r.size-HeaderSize {
		return ErrFrameTooLarge
	}

	w := r.write.Load()
	need := HeaderSize + n
	if need > r.size-(w-r.read.Load()) {
		return ErrNoSpace
	}

	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(n))
	r.copyIn(w, hdr[:])
	r.copyIn(w+HeaderSize, payload)

	// Publish
	r.write.Store(w + need)
	return nil
}

// Dequeue copies the next frame into dst and consumes it.
//
// With no frame available it returns (0, false, nil). If dst is too short it
// returns the frame length with ErrBufferTooSmall and leaves the frame in
// place. Consumer side only.
func (r *Ring) Dequeue(dst []byte) (n int, ok bool, err error) {
	rd := r.read.Load()
	size, err := r.frameAt(rd)
	if err != nil || size < 0 {
		return 0, false, err
	}

	if len(dst) < size {
		return size, false, ErrBufferTooSmall
	}

	r.copyOut(dst[:size], rd+HeaderSize)
	r.read.Store(rd + HeaderSize + uint64(size))
	return size, true, nil
}

// Peek returns the payload length of the next committed frame without
// consuming it. Like Dequeue it reports ErrCorruptFrame when the next header
// is inconsistent with the committed bytes.
func (r *Ring) Peek() (int, bool, error) {
	size, err := r.frameAt(r.read.Load())
	if err != nil || size < 0 {
		return 0, false, err
	}
	return size, true, nil
}

// Discard drops the next frame without copying it. If the next header is
// inconsistent with the committed bytes, everything committed is dropped so
// the consumer can resynchronise. It reports whether anything was dropped.
func (r *Ring) Discard() bool {
	rd := r.read.Load()
	w := r.write.Load()
	if w == rd {
		return false
	}

	size, err := r.frameAt(rd)
	if err != nil {
		r.read.Store(w)
		return true
	}
	r.read.Store(rd + HeaderSize + uint64(size))
	return true
}

// frameAt decodes the header at cursor rd. It returns -1 when no frame is
// committed and ErrCorruptFrame when the header does not fit the committed bytes.
func (r *Ring) frameAt(rd uint64) (int, error) {
	avail := r.write.Load() - rd
	if avail == 0 {
		return -1, nil
	}
	if avail < HeaderSize {
		return -1, ErrCorruptFrame
	}

	var hdr [HeaderSize]byte
	r.copyOut(hdr[:], rd)
	size := uint64(binary.LittleEndian.Uint32(hdr[:]))
	if size > avail-HeaderSize {
		return -1, ErrCorruptFrame
	}
	return int(size), nil
}

// copyIn writes src at cursor pos, splitting across the end of the buffer.
func (r *Ring) copyIn(pos uint64, src []byte) {
	off := pos & r.mask
	k := copy(r.buf[off:], src)
	if k < len(src) {
		copy(r.buf, src[k:])
	}
}

// copyOut reads len(dst) bytes from cursor pos, splitting across the end of the buffer.
func (r *Ring) copyOut(dst []byte, pos uint64) {
	off := pos & r.mask
	k := copy(dst, r.buf[off:])
	if k < len(dst) {
		copy(dst[k:], r.buf)
	}
}
