package content

import (
	"io"
	"time"

	"shelfward/internal/logging"
)

// progressWriter counts streamed bytes and reports throttled progress:
// every 10% when the total is known, and at least every 5 seconds.
type progressWriter struct {
	dst      io.Writer
	total    int64
	written  int64
	started  time.Time
	sampler  *logging.ProgressSampler
	progress ProgressFunc
}

func newProgressWriter(dst io.Writer, total int64, progress ProgressFunc) *progressWriter {
	return &progressWriter{
		dst:      dst,
		total:    total,
		started:  time.Now(),
		sampler:  logging.NewProgressSampler(10, 5*time.Second),
		progress: progress,
	}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.written += int64(n)
	if err != nil || w.progress == nil {
		return n, err
	}

	percent := -1.0
	if w.total > 0 {
		percent = float64(w.written) / float64(w.total) * 100
	}
	if w.sampler.ShouldLog(percent) {
		w.report()
	}
	return n, nil
}

// finish emits a final report so callers always observe the complete count.
func (w *progressWriter) finish() {
	if w.progress != nil {
		w.report()
	}
}

func (w *progressWriter) report() {
	elapsed := time.Since(w.started).Seconds()
	speed := 0.0
	if elapsed > 0 {
		speed = float64(w.written) / elapsed
	}
	eta := int64(-1)
	if w.total > 0 && speed > 0 {
		eta = int64(float64(w.total-w.written) / speed)
	}
	w.progress(w.written, w.total, speed, eta)
}
