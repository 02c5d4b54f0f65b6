// Package atomic provides the swap/fetch-add/compare-and-swap
// contract spec.md §9 asks the rest of the kernel to depend on,
// rather than on any particular architecture's LL/SC instructions.
//
// The original C source (original_source/k/atomic.c) branches on
// workingLdrex and armv7_m to pick an LL/SC sequence or an
// interrupt-disable fallback depending on what the target core
// actually supports. Go has no equivalent portability problem: every
// host architecture Go runs on provides real atomic instructions, so
// this package always takes the "LL/SC available" path from the
// original and never needs the disable-interrupts fallback branch.
package atomic

import "sync/atomic"

// Word is a 32-bit machine word, matching the SuperPage fields spec.md
// §3 describes (ready-list head, uptime, pending counts, ...).
type Word struct {
	v atomic.Uint32
}

func (w *Word) Load() uint32      { return w.v.Load() }
func (w *Word) Store(val uint32)  { w.v.Store(val) }
func (w *Word) Swap(new uint32) uint32 {
	return w.v.Swap(new)
}
func (w *Word) FetchAdd(delta int32) uint32 {
	return w.v.Add(uint32(delta)) - uint32(delta)
}
func (w *Word) CompareAndSwap(old, new uint32) bool {
	return w.v.CompareAndSwap(old, new)
}

// Byte is an 8-bit atomic cell. sync/atomic provides no byte-wide
// primitive, so the value is held in the low byte of a machine word
// and every operation goes through a word-wide CAS loop instead of a
// single instruction; no interrupt-disable fallback is involved.
type Byte struct {
	v atomic.Uint32
}

func (b *Byte) Load() uint8 { return uint8(b.v.Load()) }

func (b *Byte) Store(val uint8) { b.v.Store(uint32(val)) }

func (b *Byte) Swap(new uint8) uint8 {
	for {
		old := b.v.Load()
		if b.v.CompareAndSwap(old, uint32(new)) {
			return uint8(old)
		}
	}
}

func (b *Byte) FetchAdd(delta int8) uint8 {
	for {
		old := b.v.Load()
		nv := uint8(old) + uint8(delta)
		if b.v.CompareAndSwap(old, uint32(nv)) {
			return uint8(old)
		}
	}
}

func (b *Byte) CompareAndSwap(old, new uint8) bool {
	for {
		cur := b.v.Load()
		if uint8(cur) != old {
			return false
		}
		if b.v.CompareAndSwap(cur, uint32(new)) {
			return true
		}
	}
}

// Pointer is a generic atomic pointer cell used by the AsyncRequest
// ownership protocol (spec.md §4.5): taking ownership is a single
// Swap(nil) — whoever's swap returns a non-nil value is responsible
// for delivering the completion.
type Pointer[T any] struct {
	v atomic.Pointer[T]
}

func (p *Pointer[T]) Load() *T          { return p.v.Load() }
func (p *Pointer[T]) Store(val *T)      { p.v.Store(val) }
func (p *Pointer[T]) Swap(val *T) *T    { return p.v.Swap(val) }
func (p *Pointer[T]) CompareAndSwap(old, new *T) bool {
	return p.v.CompareAndSwap(old, new)
}
