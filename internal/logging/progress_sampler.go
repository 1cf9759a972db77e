package logging

import "time"

// ProgressSampler suppresses repetitive progress logs while preserving
// signal. An event is emitted when the percentage crosses a bucket boundary
// (default 10%) or when the minimum interval (default 5s) has elapsed since
// the last emitted event.
type ProgressSampler struct {
	bucketSize float64
	interval   time.Duration
	lastBucket int
	lastEmit   time.Time
	now        func() time.Time
}

// NewProgressSampler constructs a sampler with the given bucket size in
// percent and minimum interval. Non-positive arguments select the defaults.
func NewProgressSampler(bucketSize float64, interval time.Duration) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ProgressSampler{bucketSize: bucketSize, interval: interval, lastBucket: -1, now: time.Now}
}

// ShouldLog reports whether a progress event should be logged. Percent can be
// negative to indicate "unknown", in which case only the interval applies.
func (s *ProgressSampler) ShouldLog(percent float64) bool {
	if s == nil {
		return true
	}
	now := s.now()
	emit := false
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	if !emit && (s.lastEmit.IsZero() || now.Sub(s.lastEmit) >= s.interval) {
		emit = true
	}
	if emit {
		s.lastEmit = now
	}
	return emit
}

// Reset clears the sampler state for a new transfer.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
	s.lastEmit = time.Time{}
}
