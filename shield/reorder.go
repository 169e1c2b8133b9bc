package shield

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ReorderBuffer holds out of order results in a ring of window slots and hands them
// back strictly by sequence number.
type ReorderBuffer[T any] struct {
	slots []T
	ready []bool
	next  int
}

func NewReorderBuffer[T any](window int) *ReorderBuffer[T] {
	if window < 1 {
		window = 1
	}
	return &ReorderBuffer[T]{
		slots: make([]T, window),
		ready: make([]bool, window),
	}
}

// Next is the lowest sequence number not yet drained.
func (b *ReorderBuffer[T]) Next() int {
	return b.next
}

func (b *ReorderBuffer[T]) Window() int {
	return len(b.slots)
}

// Put stores v at seq, which must lie within one window of Next.
func (b *ReorderBuffer[T]) Put(seq int, v T) error {
	if seq < b.next || seq >= b.next+len(b.slots) {
		return fmt.Errorf("sequence %d outside window [%d, %d)", seq, b.next, b.next+len(b.slots))
	}
	i := seq % len(b.slots)
	if b.ready[i] {
		return fmt.Errorf("sequence %d already filled", seq)
	}
	b.slots[i] = v
	b.ready[i] = true
	return nil
}

// Drain applies and evicts every contiguous ready slot starting at Next.
// A failing apply leaves its slot in place.
func (b *ReorderBuffer[T]) Drain(apply func(seq int, v T) error) error {
	var zero T
	for {
		i := b.next % len(b.slots)
		if !b.ready[i] {
			return nil
		}
		if err := apply(b.next, b.slots[i]); err != nil {
			return err
		}
		b.slots[i] = zero
		b.ready[i] = false
		b.next++
	}
}

type fetched[T any] struct {
	seq int
	v   T
}

// OrderedFetch runs fetch for 0..n-1 with at most window results outstanding and calls
// apply in sequence order. Fetch results beyond a failed apply are discarded.
func OrderedFetch[T any](
	ctx context.Context,
	n, window int,
	fetch func(ctx context.Context, seq int) (T, error),
	apply func(seq int, v T) error,
) error {
	if n <= 0 {
		return nil
	}
	buf := NewReorderBuffer[T](window)
	window = buf.Window()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	results := make(chan fetched[T], window)

	launched := 0
	for buf.Next() < n {
		// outstanding covers in flight fetches and filled slots waiting for an earlier one
		for launched < n && launched-buf.Next() < window {
			seq := launched
			launched++
			g.Go(func() error {
				v, err := fetch(gctx, seq)
				if err != nil {
					return fmt.Errorf("fetch %d: %w", seq, err)
				}
				results <- fetched[T]{seq: seq, v: v}
				return nil
			})
		}
		select {
		case r := <-results:
			if err := buf.Put(r.seq, r.v); err != nil {
				cancel()
				_ = g.Wait()
				return err
			}
			if err := buf.Drain(apply); err != nil {
				cancel()
				_ = g.Wait()
				return err
			}
		case <-gctx.Done():
			if err := g.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		}
	}
	return g.Wait()
}
