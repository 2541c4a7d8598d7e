package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/pbtc-infra/pbtc-acceptor/types"
)

// ProgressIndicator receives per-component start/finish notifications.
type ProgressIndicator interface {
	StartRun(totalComponents int)
	StartComponent(name string)
	CompleteComponent(name string, status types.Status, duration time.Duration)
	CompleteRun()
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) StartRun(totalComponents int) {}
func (n *noOpProgressIndicator) StartComponent(name string)   {}
func (n *noOpProgressIndicator) CompleteComponent(name string, status types.Status, duration time.Duration) {
}
func (n *noOpProgressIndicator) CompleteRun() {}

// logProgressIndicator emits one structured log line per component start
// and finish, plus a periodic summary while long runs are in flight.
type logProgressIndicator struct {
	logger   log.Logger
	interval time.Duration

	mu        sync.Mutex
	total     int
	completed int
	running   map[string]time.Time
	startTime time.Time
	stopCh    chan struct{}
}

// NewLogProgressIndicator creates a progress indicator that logs component
// progress. updateInterval controls the periodic summary; 0 disables it.
func NewLogProgressIndicator(logger log.Logger, updateInterval time.Duration) ProgressIndicator {
	return &logProgressIndicator{
		logger:   logger,
		interval: updateInterval,
		running:  make(map[string]time.Time),
	}
}

func (p *logProgressIndicator) StartRun(totalComponents int) {
	p.mu.Lock()
	p.total = totalComponents
	p.completed = 0
	p.running = make(map[string]time.Time)
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.logger.Info("Starting component test run", "totalComponents", totalComponents)

	if p.interval > 0 {
		go p.reporter(p.stopCh)
	}
}

func (p *logProgressIndicator) StartComponent(name string) {
	p.mu.Lock()
	p.running[name] = time.Now()
	p.mu.Unlock()

	p.logger.Info("Component started", "component", name)
}

func (p *logProgressIndicator) CompleteComponent(name string, status types.Status, duration time.Duration) {
	p.mu.Lock()
	delete(p.running, name)
	p.completed++
	completed, total := p.completed, p.total
	p.mu.Unlock()

	p.logger.Info("Component finished",
		"component", name,
		"status", status,
		"duration", duration.Truncate(time.Millisecond),
		"completed", completed,
		"total", total)
}

func (p *logProgressIndicator) CompleteRun() {
	p.mu.Lock()
	stopCh := p.stopCh
	p.stopCh = nil
	duration := time.Since(p.startTime).Truncate(time.Second)
	completed, total := p.completed, p.total
	p.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}

	p.logger.Info("Component test run complete", "completed", completed, "total", total, "duration", duration)
}

// reporter periodically logs an in-flight summary until the run completes.
func (p *logProgressIndicator) reporter(stopCh chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reportProgress()
		case <-stopCh:
			return
		}
	}
}

func (p *logProgressIndicator) reportProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()

	var percent float64
	if p.total > 0 {
		percent = float64(p.completed) * 100.0 / float64(p.total)
	}

	p.logger.Info("Progress update",
		"completed", p.completed,
		"total", p.total,
		"percent", fmt.Sprintf("%.1f%%", percent),
		"numRunning", len(p.running),
		"longestRunning", formatRunning(p.running, 3))
}

// formatRunning renders the longest-running components, capped at maxShow.
func formatRunning(running map[string]time.Time, maxShow int) string {
	if len(running) == 0 {
		return ""
	}

	type entry struct {
		name     string
		duration time.Duration
	}

	now := time.Now()
	entries := make([]entry, 0, len(running))
	for name, started := range running {
		entries = append(entries, entry{name: name, duration: now.Sub(started)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].duration > entries[j].duration
	})

	var parts []string
	for i, e := range entries {
		if i >= maxShow {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%v)", e.name, e.duration.Truncate(time.Second)))
	}
	if len(entries) > maxShow {
		parts = append(parts, fmt.Sprintf("+%d more", len(entries)-maxShow))
	}

	return strings.Join(parts, ", ")
}
