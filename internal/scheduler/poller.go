package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic task. Each run gets its own context bounded by Timeout.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Poller runs jobs on fixed intervals until stopped. Every job also runs once
// immediately on Start.
type Poller struct {
	jobs   []Job
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewPoller(logger *slog.Logger, jobs ...Job) *Poller {
	for i := range jobs {
		if jobs[i].Timeout <= 0 {
			jobs[i].Timeout = 30 * time.Second
		}
	}
	return &Poller{jobs: jobs, logger: logger.With("component", "poller")}
}

func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.logger.Warn("already running")
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	for _, j := range p.jobs {
		if j.Interval <= 0 {
			p.logger.Warn("job disabled, no interval", "job", j.Name)
			continue
		}
		p.wg.Add(1)
		go p.loop(j, stop)
	}

	p.logger.Info("started", "jobs", len(p.jobs))
}

func (p *Poller) loop(j Job, stop <-chan struct{}) {
	defer p.wg.Done()

	p.runOnce(j)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.runOnce(j)
		}
	}
}

func (p *Poller) runOnce(j Job) {
	ctx, cancel := context.WithTimeout(context.Background(), j.Timeout)
	defer cancel()
	start := time.Now()
	if err := j.Run(ctx); err != nil {
		p.logger.Warn("job failed", "job", j.Name, "err", err)
		return
	}
	p.logger.Debug("job done", "job", j.Name, "took", time.Since(start))
}

// Stop tears down every job loop and waits for in-flight runs to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RunNow triggers the named job outside its schedule.
func (p *Poller) RunNow(ctx context.Context, name string) error {
	for _, j := range p.jobs {
		if j.Name == name {
			p.logger.Info("manual run", "job", name)
			return j.Run(ctx)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}
