// ABOUTME: Bounded time window of recently seen keys
// ABOUTME: The dispatcher uses it to refuse retried events that reuse an acked id

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type mark struct {
	key string
	at  time.Time
}

// Window remembers keys for a fixed TTL, holding at most maxSize of them.
// Keys are kept in first-seen order so expiry and eviction both pop from
// the front.
type Window struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // of *mark, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a window and starts its background expiry.
func New(ttl time.Duration, maxSize int) *Window {
	if maxSize <= 0 {
		maxSize = 1
	}
	w := &Window{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go w.run(sweepInterval(ttl))
	return w
}

func sweepInterval(ttl time.Duration) time.Duration {
	switch {
	case ttl < time.Second:
		return time.Second
	case ttl > time.Minute:
		return time.Minute
	default:
		return ttl
	}
}

// Seen reports whether key was already seen within the TTL. A new or
// expired key is recorded and false is returned. Check and record happen
// under one lock.
func (w *Window) Seen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if elem, ok := w.seen[key]; ok {
		if now.Sub(elem.Value.(*mark).at) < w.ttl {
			return true
		}
		w.order.Remove(elem)
		delete(w.seen, key)
	}

	for len(w.seen) >= w.maxSize {
		w.popFront()
	}
	w.seen[key] = w.order.PushBack(&mark{key: key, at: now})
	return false
}

// Forget drops key so the next Seen records it afresh.
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if elem, ok := w.seen[key]; ok {
		w.order.Remove(elem)
		delete(w.seen, key)
	}
}

// Len returns the number of keys held, expired or not.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Expire removes every key older than the TTL.
func (w *Window) Expire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.ttl)
	for front := w.order.Front(); front != nil; front = w.order.Front() {
		if front.Value.(*mark).at.After(cutoff) {
			return
		}
		w.popFront()
	}
}

// popFront must be called with mu held.
func (w *Window) popFront() {
	front := w.order.Front()
	if front == nil {
		return
	}
	w.order.Remove(front)
	delete(w.seen, front.Value.(*mark).key)
}

func (w *Window) run(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Expire()
		case <-w.done:
			return
		}
	}
}

// Close stops background expiry. Safe to call more than once.
func (w *Window) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}
