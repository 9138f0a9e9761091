package state

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/gogpu/canvas/internal/logx"
)

// Listener is notified after every change with the new and the previous
// snapshot.
type Listener func(next, prev *State)

// Store holds the current document snapshot and notifies subscribers of
// changes. Listeners run on the dispatching goroutine, after the store lock
// is released, so they may dispatch further actions.
type Store struct {
	mu        sync.Mutex
	state     *State
	version   uint64
	listeners []subscription
	nextSub   uint64
	log       *slog.Logger
}

type subscription struct {
	id uint64
	fn Listener
}

// NewStore creates a store holding initial, or an empty document when
// initial is nil.
func NewStore(initial *State) *Store {
	if initial == nil {
		initial = New()
	}
	return &Store{state: initial, log: logx.Nop()}
}

// SetLogger sets the logger used for dispatch diagnostics.
func (s *Store) SetLogger(l *slog.Logger) {
	s.mu.Lock()
	s.log = logx.OrNop(l)
	s.mu.Unlock()
}

// State returns the current snapshot.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version returns the number of changes applied so far.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Dispatch applies a to the current snapshot. Subscribers are notified
// only when the action changed the document. A failing action leaves the
// document untouched.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	prev := s.state
	next, err := a.apply(prev)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if next == prev {
		s.mu.Unlock()
		return nil
	}
	s.log.Debug("dispatch", slog.String("action", fmt.Sprintf("%T", a)), slog.Uint64("version", s.version+1))
	return s.commit(next, prev)
}

// Replace swaps in a whole new document, e.g. after reloading it from
// disk. Entities that kept their pointers are reported as unchanged.
func (s *Store) Replace(next *State) {
	s.mu.Lock()
	prev := s.state
	if next == prev {
		s.mu.Unlock()
		return
	}
	_ = s.commit(next, prev)
}

// commit must be called with s.mu held; it releases it.
func (s *Store) commit(next, prev *State) error {
	s.state = next
	s.version++
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next, prev)
	}
	return nil
}

// Subscribe registers fn for change notifications, in subscription order.
// It returns a function that removes the subscription.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Select subscribes fn to a derived value. fn runs only when the selected
// value changes, compared with ==.
func Select[T comparable](s *Store, sel func(*State) T, fn func(next, prev T)) (unsubscribe func()) {
	return s.Subscribe(func(next, prev *State) {
		n, p := sel(next), sel(prev)
		if n != p {
			fn(n, p)
		}
	})
}

// SameObjects reports whether two object lists are the same list: same
// backing array and length. Reducers always allocate a new array when a
// list changes, so this is the "by reference" comparison of the lists.
func SameObjects(a, b []Object) bool {
	return len(a) == len(b) && (len(a) == 0 || unsafe.SliceData(a) == unsafe.SliceData(b))
}
