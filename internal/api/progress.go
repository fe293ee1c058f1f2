package api

import (
	"sync"
	"time"
)

// ProgressSnapshot is the JSON view of batch progress.
type ProgressSnapshot struct {
	Running   bool      `json:"running"`
	Success   int       `json:"success"`
	Fail      int       `json:"fail"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Progress tracks the counters reported by the orchestrator callbacks.
// Updates arrive from pool workers, so every access is locked.
type Progress struct {
	mu   sync.RWMutex
	snap ProgressSnapshot
	now  func() time.Time
}

// NewProgress returns an idle tracker.
func NewProgress() *Progress {
	return &Progress{now: time.Now}
}

// Start resets the tracker for a batch of total URLs.
func (p *Progress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = ProgressSnapshot{Running: true, Total: total, UpdatedAt: p.now().UTC()}
}

// Update records a per-task progress report. Reports may arrive out of
// order, so neither count moves backwards.
func (p *Progress) Update(success, fail, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if success > p.snap.Success {
		p.snap.Success = success
	}
	if fail > p.snap.Fail {
		p.snap.Fail = fail
	}
	p.snap.Total = total
	p.snap.UpdatedAt = p.now().UTC()
}

// Finish records the final counts.
func (p *Progress) Finish(success, fail, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = ProgressSnapshot{
		Running:   false,
		Success:   success,
		Fail:      fail,
		Total:     total,
		UpdatedAt: p.now().UTC(),
	}
}

// Snapshot returns the current view.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}
