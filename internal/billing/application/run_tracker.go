package application

import (
	"sort"
	"sync"
	"time"

	billing "club-ledger/internal/billing/domain"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"

	defaultRunHistory = 50
)

// Run is the observable state of one commit.
type Run struct {
	ID         string
	Period     billing.Period
	Scope      billing.Scope
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Generated  int
	Skipped    int
	Error      string
}

// RunTracker exposes commits in progress and rejects a second commit for
// a (period, scope) that is still running.
type RunTracker struct {
	mu       sync.Mutex
	running  map[string]*Run
	finished []Run
	keep     int
	clock    billing.Clock
}

// NewRunTracker constructs a tracker keeping the last keep finished runs.
func NewRunTracker(clock billing.Clock, keep int) *RunTracker {
	if clock == nil {
		clock = SystemClock{}
	}
	if keep <= 0 {
		keep = defaultRunHistory
	}
	return &RunTracker{running: map[string]*Run{}, keep: keep, clock: clock}
}

func runKey(period billing.Period, scope billing.Scope) string {
	return period.String() + "|" + scope.Key()
}

// Begin registers a run or fails with ErrConflict.
func (t *RunTracker) Begin(id string, period billing.Period, scope billing.Scope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := runKey(period, scope)
	if current, ok := t.running[key]; ok {
		return billing.Conflictf("fee run %s for %s is already in progress", current.ID, period)
	}
	t.running[key] = &Run{ID: id, Period: period, Scope: scope, Status: RunStatusRunning, StartedAt: t.clock.Now()}
	return nil
}

// Finish moves a run to history.
func (t *RunTracker) Finish(period billing.Period, scope billing.Scope, batch *billing.Batch, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := runKey(period, scope)
	run, ok := t.running[key]
	if !ok {
		return
	}
	delete(t.running, key)
	run.FinishedAt = t.clock.Now()
	run.Status = RunStatusCompleted
	if batch != nil {
		run.Processed = batch.Processed
		run.Generated = batch.Generated
		run.Skipped = len(batch.Skipped)
	}
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
	}
	t.finished = append(t.finished, *run)
	if len(t.finished) > t.keep {
		t.finished = t.finished[len(t.finished)-t.keep:]
	}
}

// List returns running runs first, then finished ones, newest first.
func (t *RunTracker) List() []Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Run, 0, len(t.running)+len(t.finished))
	for _, run := range t.running {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	for i := len(t.finished) - 1; i >= 0; i-- {
		out = append(out, t.finished[i])
	}
	return out
}
