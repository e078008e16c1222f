package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/folio-sites/folio-domains/pkg/db"
	"github.com/folio-sites/folio-domains/pkg/lifecycle"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	// DefaultInterval is how often the sweep runs.
	DefaultInterval = 15 * time.Minute

	// DefaultRecheckInterval is how long a verified or assigned domain may go
	// without a drift re-check. Zero disables drift re-checks entirely.
	DefaultRecheckInterval = 24 * time.Hour

	DefaultWorkers = 8

	// checkTimeout bounds one domain's whole check, on top of the resolver's
	// per-lookup timeouts.
	checkTimeout = 30 * time.Second
)

// Scheduler drives pending domains forward unattended. Each sweep fans out
// over a bounded worker pool; domains are independent, so there is no
// ordering and a failure on one never aborts the batch.
type Scheduler struct {
	db              db.Database
	controller      *lifecycle.Controller
	interval        time.Duration
	recheckInterval time.Duration
	workers         int
	log             *logrus.Entry
}

func New(database db.Database, controller *lifecycle.Controller, interval, recheckInterval time.Duration, workers int, log *logrus.Entry) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Scheduler{
		db:              database,
		controller:      controller,
		interval:        interval,
		recheckInterval: recheckInterval,
		workers:         workers,
		log:             log,
	}
}

func (s *Scheduler) Start(stopCh <-chan struct{}) {
	s.log.Infof("starting verification sweeps. interval: %v, drift re-check: %v, workers: %d",
		s.interval, s.recheckInterval, s.workers)
	wait.JitterUntil(s.Sweep, s.interval, .002, true, stopCh)
}

// Sweep runs one batch of checks over every domain that needs one.
func (s *Scheduler) Sweep() {
	start := time.Now()

	domains, err := s.db.ListActiveDomains()
	if err != nil {
		s.log.Errorf("problem listing pending domains: %v", err)
		return
	}

	if s.recheckInterval > 0 {
		stale, err := s.db.ListStaleVerifiedDomains(time.Now().Add(-s.recheckInterval))
		if err != nil {
			s.log.Errorf("problem listing verified domains for drift re-check: %v", err)
		} else {
			domains = append(domains, stale...)
		}
	}

	if len(domains) == 0 {
		return
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, d := range domains {
		wg.Add(1)
		sem <- struct{}{}
		go func(d db.Domain) {
			defer wg.Done()
			defer func() { <-sem }()
			s.checkOne(d)
		}(d)
	}
	wg.Wait()

	s.log.WithFields(logrus.Fields{
		"domains":  len(domains),
		"duration": time.Since(start),
	}).Info("sweep complete")
}

func (s *Scheduler) checkOne(d db.Domain) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("panic while checking domain %s: %v", d.Hostname, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	if _, err := s.controller.Check(ctx, d.TenantID, d.ID); err != nil {
		if err == db.ErrNotFound {
			// Deleted between the listing and the check.
			s.log.Debugf("domain %s vanished mid-sweep", d.Hostname)
			return
		}
		s.log.Errorf("problem checking domain %s: %v", d.Hostname, err)
	}
}
