package logging

import "sync"

// OnceSet remembers which keys have been reported, so recoverable
// conditions that recur every frame are logged a single time.
type OnceSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// First reports whether key is being seen for the first time.
func (o *OnceSet) First(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen == nil {
		o.seen = make(map[string]struct{})
	}
	if _, ok := o.seen[key]; ok {
		return false
	}
	o.seen[key] = struct{}{}
	return true
}

// Forget clears every remembered key.
func (o *OnceSet) Forget() {
	o.mu.Lock()
	o.seen = nil
	o.mu.Unlock()
}
