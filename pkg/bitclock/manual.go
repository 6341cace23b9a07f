package bitclock

import "sync"

// Manual is a bit clock that never ticks by itself. It records how often it was started
// and stopped, the owner calls the bit sampler explicitly.
type Manual struct {
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
}

// Start marks the clock as running.
func (m *Manual) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.starts++
}

// Stop marks the clock as stopped.
func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.stops++
}

// Running reports whether the clock is started.
func (m *Manual) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts returns the number of Start calls.
func (m *Manual) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns the number of Stop calls.
func (m *Manual) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
