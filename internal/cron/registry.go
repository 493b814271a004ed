package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Job is a unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// due reports whether the entry should run at now. An entry without a
// cadence runs on every cycle.
func (e *entry) due(now time.Time) bool {
	return e.every <= 0 || e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every
}

// Registry holds jobs in registration order with their cadence.
type Registry struct {
	entries []*entry
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Add registers job to run at most once per every. Zero runs it on each
// cycle of the service.
func (r *Registry) Add(job Job, every time.Duration) error {
	if job == nil {
		return errors.New("job required")
	}
	name := job.Name()
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, &entry{job: job, every: every})
	return nil
}

func (r *Registry) Len() int { return len(r.entries) }

func (r *Registry) dueAt(now time.Time) []*entry {
	var out []*entry
	for _, e := range r.entries {
		if e.due(now) {
			out = append(out, e)
		}
	}
	return out
}
