package watcher

import "sync"

// Source emits the page address every time a tab navigates, including
// client-side navigations that do not reload the page.
type Source interface {
	OnNavigationChange(fn func(url string)) (cancel func())
}

// Feed is a Source fed by the HTTP and websocket surfaces.
type Feed struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(string)
	last      string
}

func NewFeed() *Feed {
	return &Feed{listeners: make(map[int]func(string))}
}

// OnNavigationChange registers fn for every published address.
func (f *Feed) OnNavigationChange(fn func(url string)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// Publish notifies every listener of a navigation to url.
func (f *Feed) Publish(url string) {
	f.mu.Lock()
	f.last = url
	fns := make([]func(string), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(url)
	}
}

// Last returns the most recently published address.
func (f *Feed) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}
