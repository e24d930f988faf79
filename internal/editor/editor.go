// Package editor defines the contract between the language bridge and the
// host editing surface: a text buffer with change notification, a marker
// store for diagnostics, and a registry where language feature providers are
// installed. The host editor widget consumes providers and markers; the
// bridge produces them.
package editor

import "sync"

// Position is a 1-based row/column location as the host editor exposes it.
type Position struct {
	Row    int
	Column int
}

// Range is a host-coordinate span from Start to End (end exclusive).
type Range struct {
	Start Position
	End   Position
}

// Location is a range inside a named document.
type Location struct {
	URI   string
	Range Range
}

// Disposable releases a resource such as a provider registration or an
// event subscription. Dispose must be safe to call more than once.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a plain function to the Disposable interface.
type DisposeFunc func()

// Dispose invokes the wrapped function.
func (f DisposeFunc) Dispose() { f() }

// Buffer is the live text document owned by the host editor.
type Buffer interface {
	// Value returns the full current text.
	Value() string

	// SetValue replaces the full text and notifies change listeners.
	SetValue(text string)

	// OnDidChangeContent registers a listener invoked after every content
	// mutation. The returned Disposable removes the listener.
	OnDidChangeContent(fn func()) Disposable
}

// TextBuffer is an in-memory Buffer implementation used by embedders that do
// not bring their own document model, and by tests.
type TextBuffer struct {
	mu        sync.Mutex
	content   string
	nextID    int
	listeners map[int]func()
}

// NewTextBuffer creates a buffer with the given initial content.
func NewTextBuffer(content string) *TextBuffer {
	return &TextBuffer{
		content:   content,
		listeners: make(map[int]func()),
	}
}

// Value returns the full current text.
func (b *TextBuffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

// SetValue replaces the buffer content and fires change listeners.
func (b *TextBuffer) SetValue(text string) {
	b.mu.Lock()
	b.content = text
	fns := make([]func(), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	// Listeners run outside the lock so they may read the buffer.
	for _, fn := range fns {
		fn()
	}
}

// OnDidChangeContent registers a change listener.
func (b *TextBuffer) OnDidChangeContent(fn func()) Disposable {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return DisposeFunc(func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	})
}

// ListenerCount returns the number of live change listeners.
func (b *TextBuffer) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
