package watcher

import "sync"

// folderState is the lifecycle position of one watched folder.
type folderState int

const (
	// stateAbsent means the folder is unknown or was released for retry.
	stateAbsent folderState = iota

	// stateProcessing means a claim is held; no other scan may touch it.
	stateProcessing

	// stateProcessed is terminal. The folder is never picked up again for
	// the lifetime of the watcher, whatever the upload outcome was.
	stateProcessed
)

// Registry tracks which folders have been handled across scan cycles.
// Transitions are atomic: a folder can only be claimed once until it is
// released or completed.
type Registry struct {
	mu     sync.Mutex
	states map[string]folderState
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[string]folderState)}
}

// Claim attempts to take the folder for processing. It returns true only when
// the folder was absent; a folder already processing or processed cannot be
// claimed.
func (r *Registry) Claim(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states[name] != stateAbsent {
		return false
	}
	r.states[name] = stateProcessing
	return true
}

// Release returns a claimed folder to the absent state so a later scan can
// retry it. Used when the folder turned out to be unstable.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states[name] == stateProcessing {
		delete(r.states, name)
	}
}

// Complete moves a claimed folder to the terminal processed state.
func (r *Registry) Complete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states[name] == stateProcessing {
		r.states[name] = stateProcessed
	}
}

// Processed reports whether the folder has reached the terminal state.
func (r *Registry) Processed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[name] == stateProcessed
}

// ProcessedCount returns how many folders have been fully handled.
func (r *Registry) ProcessedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, state := range r.states {
		if state == stateProcessed {
			count++
		}
	}
	return count
}

// Reset forgets every folder. Useful in tests.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = make(map[string]folderState)
}
