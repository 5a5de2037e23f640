// Package scheduler runs periodic background jobs
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var linksPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "onboarding_links_purged_total",
	Help: "Expired onboarding links removed by the cleanup job",
})

// LinkCleaner is the slice of LinkOnboardingFlow the cleanup job needs
type LinkCleaner interface {
	CleanupExpiredLinks(ctx context.Context) (int64, error)
}

// LinkCleanupScheduler periodically purges expired onboarding links
type LinkCleanupScheduler struct {
	cleaner  LinkCleaner
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
}

func NewLinkCleanupScheduler(cleaner LinkCleaner, interval, timeout time.Duration, logger *logrus.Logger) *LinkCleanupScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LinkCleanupScheduler{
		cleaner:  cleaner,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start launches the loop in a background goroutine and returns a stop function
// that blocks until the loop has exited.
func (s *LinkCleanupScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	s.logger.WithField("interval", s.interval.String()).Info("Link cleanup scheduler started")

	return func() {
		cancel()
		wg.Wait()
		s.logger.Info("Link cleanup scheduler stopped")
	}
}

func (s *LinkCleanupScheduler) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	n, err := s.cleaner.CleanupExpiredLinks(ctx)
	if err != nil {
		if parent.Err() != nil {
			return
		}
		s.logger.WithError(err).Error("Failed to purge expired onboarding links")
		return
	}
	if n > 0 {
		linksPurgedTotal.Add(float64(n))
		s.logger.WithField("purged", n).Info("Purged expired onboarding links")
	}
}
