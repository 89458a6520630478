package runtime

import (
	"sync"

	"opcrdt/pkg/crdt"
)

// listeners is the observer registry of one instance. Listeners run on the
// goroutine delivering the message, after the new state is visible.
type listeners struct {
	mu     sync.RWMutex
	change []func(crdt.Change)
	deep   []func()
}

func (l *listeners) onChange(fn func(crdt.Change)) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.change = append(l.change, fn)
	l.mu.Unlock()
}

func (l *listeners) onDeepChange(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.deep = append(l.deep, fn)
	l.mu.Unlock()
}

func (l *listeners) emitChange(ch crdt.Change) {
	l.mu.RLock()
	fns := l.change
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(ch)
	}
}

func (l *listeners) emitDeep() {
	l.mu.RLock()
	fns := l.deep
	l.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
