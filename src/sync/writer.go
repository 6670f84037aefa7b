package sync

import (
	"context"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// Gate serializing pending transaction writes. Waiters are served in the order they called.
// Holds the last assigned sequence index, which is authoritative between reseeds.
type Writer struct {
	sem *semaphore.Weighted

	// Written only while holding sem
	last *atomic.Int64
}

func NewWriter() (self *Writer) {
	self = new(Writer)
	self.sem = semaphore.NewWeighted(1)
	self.last = atomic.NewInt64(-1)
	return
}

// Runs fn with the next sequence index. The index is consumed only if fn succeeds.
func (self *Writer) Do(ctx context.Context, fn func(next int64) error) (err error) {
	err = self.sem.Acquire(ctx, 1)
	if err != nil {
		return
	}
	defer self.sem.Release(1)

	next := self.last.Load() + 1
	err = fn(next)
	if err != nil {
		return
	}

	self.last.Store(next)
	return nil
}

// Sets the last assigned index to the value returned by watermark, which runs under the gate.
// Counter is left untouched if watermark fails.
func (self *Writer) Reseed(ctx context.Context, watermark func() (int64, error)) (out int64, err error) {
	err = self.sem.Acquire(ctx, 1)
	if err != nil {
		return
	}
	defer self.sem.Release(1)

	out, err = watermark()
	if err != nil {
		return
	}

	self.last.Store(out)
	return
}

func (self *Writer) Last() int64 {
	return self.last.Load()
}
