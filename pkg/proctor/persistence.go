package proctor

// PersistenceFilter debounces a noisy boolean condition: it asserts once
// the condition has held for threshold consecutive updates and keeps
// asserting while it holds.
type PersistenceFilter struct {
	count     int
	threshold int
}

// NewPersistenceFilter creates a filter. Thresholds below 1 are treated as 1.
func NewPersistenceFilter(threshold int) *PersistenceFilter {
	if threshold < 1 {
		threshold = 1
	}
	return &PersistenceFilter{threshold: threshold}
}

// Update feeds one observation and returns whether the condition is asserted
func (f *PersistenceFilter) Update(cond bool) bool {
	if !cond {
		f.count = 0
		return false
	}
	f.count++
	return f.count >= f.threshold
}

// Reset zeroes the consecutive count
func (f *PersistenceFilter) Reset() {
	f.count = 0
}

// Count returns the current consecutive count
func (f *PersistenceFilter) Count() int {
	return f.count
}

// Threshold returns the configured threshold
func (f *PersistenceFilter) Threshold() int {
	return f.threshold
}
