package ui

import (
	"sync"
	"time"
)

// etaSmoothing weights a fresh ETA estimate against the previous one.
const etaSmoothing = 0.3

// ProgressTracker holds ingest progress for the TUI. It is safe for
// concurrent use.
type ProgressTracker struct {
	mu sync.RWMutex

	stage       Stage
	current     int
	total       int
	currentFile string
	document    int
	documents   int

	startTime  time.Time
	stageStart time.Time
	lastETA    time.Duration

	// chunk throughput while embedding
	lastCurrent int
	lastSample  time.Time
	rate        float64

	errors   []ErrorEvent
	warnings []ErrorEvent
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	Document    int
	Documents   int
	Rate        float64 // items per second in the current stage
	ErrorCount  int
	WarnCount   int
}

// NewProgressTracker starts a tracker in the scanning stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageScanning,
		startTime:  now,
		stageStart: now,
		lastSample: now,
	}
}

// Apply folds an event into the tracker. A stage change resets the
// per-stage counters, ETA and throughput.
func (p *ProgressTracker) Apply(ev ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if ev.Stage != p.stage {
		p.stage = ev.Stage
		p.stageStart = now
		p.lastETA = 0
		p.lastCurrent = 0
		p.lastSample = now
		p.rate = 0
	}

	if ev.Documents > 0 {
		p.document = ev.Document
		p.documents = ev.Documents
	}
	if ev.CurrentFile != "" {
		p.currentFile = ev.CurrentFile
	}
	p.total = ev.Total
	p.current = ev.Current

	if elapsed := now.Sub(p.lastSample); elapsed >= 250*time.Millisecond {
		if delta := p.current - p.lastCurrent; delta > 0 {
			p.rate = float64(delta) / elapsed.Seconds()
		}
		p.lastCurrent = p.current
		p.lastSample = now
	}
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(ev ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.IsWarn {
		p.warnings = append(p.warnings, ev)
	} else {
		p.errors = append(p.errors, ev)
	}
}

// Elapsed returns time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// Stats returns a snapshot. It takes the write lock because the ETA
// estimate is smoothed across calls.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    fraction(p.current, p.total),
		ETA:         p.eta(),
		CurrentFile: p.currentFile,
		Document:    p.document,
		Documents:   p.documents,
		Rate:        p.rate,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
	}
}

// Errors returns a copy of the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns a copy of the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.warnings...)
}

func fraction(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return min(float64(current)/float64(total), 1.0)
}

// eta must be called with the lock held.
func (p *ProgressTracker) eta() time.Duration {
	progress := fraction(p.current, p.total)
	if progress <= 0 || progress >= 1 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	remaining := time.Duration(float64(elapsed)/progress) - elapsed
	if remaining < 0 {
		return 0
	}
	if p.lastETA > 0 {
		remaining = time.Duration(etaSmoothing*float64(remaining) + (1-etaSmoothing)*float64(p.lastETA))
	}
	p.lastETA = remaining
	return remaining
}
