package scan

import (
	"sync"
	"time"
)

// Pulse tracks scanner liveness from the backend's own heartbeat: the
// timestamp and scan counter each batch carries. The status API surfaces it
// so a stalled feed is visible from the dashboard.
type Pulse struct {
	mu    sync.Mutex
	last  time.Time
	count int64
}

// Observe records one scanner batch. A zero heartbeat (older backend builds
// omit it) falls back to the local receive time, and a zero counter keeps a
// locally incremented count.
func (p *Pulse) Observe(heartbeat time.Time, count int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if heartbeat.IsZero() {
		heartbeat = time.Now().UTC()
	}
	p.last = heartbeat
	if count > 0 {
		p.count = count
	} else {
		p.count++
	}
}

// Last returns the most recent heartbeat and the scan count. The timestamp
// is zero until the first batch lands.
func (p *Pulse) Last() (time.Time, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.count
}
