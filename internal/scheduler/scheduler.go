// Package scheduler drives periodic ticks of a job from a single goroutine.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/conversionsync/internal/syncjob"
)

// Runner is one tick of work.
type Runner interface {
	Tick(ctx context.Context) (syncjob.RunReport, error)
}

// Scheduler runs the job every interval and on demand. Runs never overlap.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	trigger  chan struct{}
	logger   *logrus.Logger

	wg sync.WaitGroup
}

func New(runner Runner, interval time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   logger,
	}
}

// Start launches the loop; it stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(s.interval)
		defer t.Stop()

		resetTimer := func() {
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(s.interval)
		}

		run := func(reason string) {
			if _, err := s.runner.Tick(ctx); err != nil {
				s.logger.WithError(err).WithField("reason", reason).Warn("[scheduler] tick failed, same window retried next time")
			}
			resetTimer()
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.trigger:
				run("trigger")
			case <-t.C:
				run("interval")
			}
		}
	}()
}

// Trigger asks for a run as soon as the loop is free. It returns false if a run is already pending.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Wait blocks until the loop has exited.
func (s *Scheduler) Wait() { s.wg.Wait() }
