package browser

import "sync"

// oneshot hands a single value from a CDP event callback to the goroutine
// waiting in FetchViaWindow. Later sends are dropped.
type oneshot[T any] struct {
	mu sync.Mutex
	tx chan<- T
	rx <-chan T
}

func newOneshot[T any]() *oneshot[T] {
	ch := make(chan T, 1)
	return &oneshot[T]{tx: ch, rx: ch}
}

// Send reports whether v was the value delivered.
func (o *oneshot[T]) Send(v T) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tx == nil {
		return false
	}
	o.tx <- v
	close(o.tx)
	o.tx = nil
	return true
}

// Close closes the slot without a value; a waiting receiver sees !ok.
func (o *oneshot[T]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tx != nil {
		close(o.tx)
		o.tx = nil
	}
}

func (o *oneshot[T]) Recv() <-chan T {
	return o.rx
}
