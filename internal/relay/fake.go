package relay

import "sync"

// FakeBackend is a test double that records writes.
type FakeBackend struct {
	mu sync.Mutex

	// Writes contains every requested level, including failed ones.
	Writes []bool

	// WriteError, if set, is returned by Write and the level is unchanged.
	WriteError error

	// CloseCount tracks how many times Close was called.
	CloseCount int

	level bool
}

// NewFakeBackend creates a FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

// Write records the request and applies it unless WriteError is set.
func (f *FakeBackend) Write(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = append(f.Writes, on)
	if f.WriteError != nil {
		return f.WriteError
	}
	f.level = on
	return nil
}

// Close counts the call.
func (f *FakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCount++
	return nil
}

// Name returns "fake".
func (f *FakeBackend) Name() string {
	return "fake"
}

// Level reports the physical level.
func (f *FakeBackend) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// SetWriteError sets or clears the write failure.
func (f *FakeBackend) SetWriteError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WriteError = err
}

// WriteCount returns how many writes were attempted.
func (f *FakeBackend) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Writes)
}
