package execution

import (
	"log/slog"
	"sync"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// PeriodicJobs is satisfied by *river.PeriodicJobBundle (client.PeriodicJobs()).
type PeriodicJobs interface {
	Add(job *river.PeriodicJob) rivertype.PeriodicJobHandle
	Remove(handle rivertype.PeriodicJobHandle)
}

// Poller owns the poll_reviews periodic job and swaps it when the interval changes.
type Poller struct {
	mu        sync.Mutex
	jobs      PeriodicJobs
	handle    rivertype.PeriodicJobHandle
	scheduled bool
	interval  time.Duration
	log       *slog.Logger
}

func NewPoller(jobs PeriodicJobs, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{jobs: jobs, log: log}
}

func pollJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return PollReviewsArgs{}, &river.InsertOpts{
				MaxAttempts: 1,
				UniqueOpts:  river.UniqueOpts{ByPeriod: interval},
			}
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}

// Schedule installs the poller at interval, replacing any earlier schedule. The first run
// happens immediately. Scheduling the current interval again is a no-op.
func (p *Poller) Schedule(interval time.Duration) {
	if interval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scheduled && interval == p.interval {
		return
	}
	if p.scheduled {
		p.jobs.Remove(p.handle)
	}
	p.handle = p.jobs.Add(pollJob(interval))
	p.scheduled = true
	p.interval = interval
	p.log.Info("review poller scheduled", "interval", interval.String())
}

// Reschedule takes minutes, the unit settings use.
func (p *Poller) Reschedule(minutes int) {
	p.Schedule(time.Duration(minutes) * time.Minute)
}

func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}
