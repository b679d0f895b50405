package effect

import "sync"

// Recorder is an in-memory Surface that keeps what the engine rendered.
// It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	strips   []Strip
	params   FilterParams
	hasParam bool
	clears   int
}

// Clear implements Surface.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strips = r.strips[:0]
	r.clears++
}

// AddStrip implements Surface.
func (r *Recorder) AddStrip(s Strip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strips = append(r.strips, s)
}

// SetFilterParams implements Surface.
func (r *Recorder) SetFilterParams(p FilterParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = p
	r.hasParam = true
}

// Strips returns a copy of the recorded strips.
func (r *Recorder) Strips() []Strip {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Strip, len(r.strips))
	copy(out, r.strips)
	return out
}

// Params returns the last filter parameters and whether any were set.
func (r *Recorder) Params() (FilterParams, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params, r.hasParam
}

// Clears returns how many times the surface was cleared.
func (r *Recorder) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

var _ Surface = (*Recorder)(nil)
