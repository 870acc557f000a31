package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
)

// Sweeper marks overdue assignments as missed.
type Sweeper interface {
	SweepOverdue(ctx context.Context) (assignment.SweepResult, error)
}

// Scheduler runs the assignment status sweep in the background.
type Scheduler struct {
	interval time.Duration
	sweeper  Sweeper
	logger   core.Logger

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New(conf *core.Config, sweeper Sweeper, logger core.Logger) *Scheduler {
	return &Scheduler{
		interval: conf.Sweep.Interval,
		sweeper:  sweeper,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs a sweep right away, then one every interval, until Stop is called or ctx is done.
// It does nothing when the interval is not positive.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Warn(fmt.Sprintf("assignment sweep not started: invalid interval %v", s.interval))
		close(s.done)
		return
	}
	s.logger.Info(fmt.Sprintf("starting assignment sweep every %v", s.interval))
	go s.run(ctx)
}

// Stop stops the sweep loop and waits for the running sweep (if any) to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("assignment sweep stopped")
			return
		case <-ctx.Done():
			s.logger.Info("assignment sweep cancelled")
			return
		}
	}
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce(ctx context.Context) (assignment.SweepResult, error) {
	return s.sweeper.SweepOverdue(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("sweeping overdue assignments", err)
		return
	}
	if res.Missed > 0 {
		s.logger.Info(fmt.Sprintf("marked %d of %d overdue assignments as missed", res.Missed, res.Checked),
			map[string]interface{}{"courses": res.CourseIDs})
	}
}
